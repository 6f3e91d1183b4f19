package layout

import (
	"math/rand"
	"testing"
)

func q(id int64, page int) Question { return Question{ID: id, Type: "single_choice", Page: page} }

func desc(id int64, page int) Question { return Question{ID: id, Type: TypeDescription, Page: page} }

func sampleQuiz() []Question {
	return []Question{
		desc(1, 1), q(2, 1), q(3, 1),
		q(4, 2), q(5, 2),
		desc(6, 3), q(7, 3), q(8, 3), q(9, 3),
	}
}

func idsOf(qs []Question) []int64 {
	out := make([]int64, len(qs))
	for i, x := range qs {
		out[i] = x.ID
	}
	return out
}

func sameMultiset(a, b []Question) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[int64]int{}
	for _, x := range a {
		seen[x.ID]++
	}
	for _, x := range b {
		seen[x.ID]--
	}
	for _, v := range seen {
		if v != 0 {
			return false
		}
	}
	return true
}

func TestArrangeNoShuffleIsIdentity(t *testing.T) {
	in := sampleQuiz()
	out := Arrange(in, Options{Mode: NoShuffle}, rand.New(rand.NewSource(1)))
	for i := range in {
		if out[i].ID != in[i].ID {
			t.Fatalf("position %d: got %d, want %d", i, out[i].ID, in[i].ID)
		}
	}
}

func TestArrangePreservesElementSet(t *testing.T) {
	in := sampleQuiz()
	modes := []ShuffleMode{NoShuffle, ShuffleIgnoringPages, ShuffleWithinPageOnly, ShufflePagesOnly, ShuffleAll}
	for _, mode := range modes {
		for seed := int64(0); seed < 20; seed++ {
			out := Arrange(in, Options{Mode: mode, FixDescriptionLead: true}, rand.New(rand.NewSource(seed)))
			if !sameMultiset(in, out) {
				t.Fatalf("mode %d seed %d: element set changed: %v", mode, seed, idsOf(out))
			}
		}
	}
}

func TestArrangeIsDeterministicForSeed(t *testing.T) {
	in := sampleQuiz()
	a := Arrange(in, Options{Mode: ShuffleAll, FixDescriptionLead: true}, rand.New(rand.NewSource(7)))
	b := Arrange(in, Options{Mode: ShuffleAll, FixDescriptionLead: true}, rand.New(rand.NewSource(7)))
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("same seed diverged at %d: %v vs %v", i, idsOf(a), idsOf(b))
		}
	}
}

func TestShuffleWithinPageKeepsPageOrder(t *testing.T) {
	in := sampleQuiz()
	for seed := int64(0); seed < 25; seed++ {
		out := Arrange(in, Options{Mode: ShuffleWithinPageOnly}, rand.New(rand.NewSource(seed)))
		last := 0
		for _, x := range out {
			if x.Page < last {
				t.Fatalf("seed %d: page %d appeared after page %d: %v", seed, x.Page, last, idsOf(out))
			}
			last = x.Page
		}
	}
}

func TestShufflePagesOnlyKeepsInternalOrder(t *testing.T) {
	in := sampleQuiz()
	want := map[int][]int64{1: {1, 2, 3}, 2: {4, 5}, 3: {6, 7, 8, 9}}
	for seed := int64(0); seed < 25; seed++ {
		out := Arrange(in, Options{Mode: ShufflePagesOnly}, rand.New(rand.NewSource(seed)))
		got := map[int][]int64{}
		for _, x := range out {
			got[x.Page] = append(got[x.Page], x.ID)
		}
		for page, ids := range want {
			for i := range ids {
				if got[page][i] != ids[i] {
					t.Fatalf("seed %d: page %d reordered internally: %v", seed, page, got[page])
				}
			}
		}
	}
}

func TestFixDescriptionLeadPinsPageLead(t *testing.T) {
	in := sampleQuiz()
	for seed := int64(0); seed < 25; seed++ {
		out := Arrange(in, Options{Mode: ShuffleWithinPageOnly, FixDescriptionLead: true}, rand.New(rand.NewSource(seed)))
		byPage := map[int][]Question{}
		for _, x := range out {
			byPage[x.Page] = append(byPage[x.Page], x)
		}
		if byPage[1][0].ID != 1 {
			t.Fatalf("seed %d: page 1 lead description moved: %v", seed, idsOf(byPage[1]))
		}
		if byPage[3][0].ID != 6 {
			t.Fatalf("seed %d: page 3 lead description moved: %v", seed, idsOf(byPage[3]))
		}
	}
}

func TestFixFirstAndLastPagePins(t *testing.T) {
	in := sampleQuiz()
	opts := Options{Mode: ShufflePagesOnly, FixFirstPage: true, FixLastPage: true}
	for seed := int64(0); seed < 25; seed++ {
		out := Arrange(in, opts, rand.New(rand.NewSource(seed)))
		if out[0].Page != 1 {
			t.Fatalf("seed %d: first page moved, starts with page %d", seed, out[0].Page)
		}
		if out[len(out)-1].Page != 3 {
			t.Fatalf("seed %d: last page moved, ends with page %d", seed, out[len(out)-1].Page)
		}
	}
}

func TestPermIndexesPinsEnds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		perm := permIndexes(8, true, true, rng)
		if perm[0] != 0 || perm[7] != 7 {
			t.Fatalf("trial %d: pinned ends moved: %v", trial, perm)
		}
	}
}

func TestPermIndexesDegenerateCases(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cases := []struct {
		n                 int
		fixFirst, fixLast bool
	}{
		{0, false, false},
		{1, false, false},
		{2, true, false},
		{2, false, true},
		{3, true, true},
	}
	for _, c := range cases {
		perm := permIndexes(c.n, c.fixFirst, c.fixLast, rng)
		for i, v := range perm {
			if v != i {
				t.Fatalf("n=%d fixFirst=%v fixLast=%v: expected identity, got %v", c.n, c.fixFirst, c.fixLast, perm)
			}
		}
	}
}

func TestShuffleIgnoringPagesMovesAcrossPages(t *testing.T) {
	in := sampleQuiz()
	moved := false
	for seed := int64(0); seed < 10 && !moved; seed++ {
		out := Arrange(in, Options{Mode: ShuffleIgnoringPages}, rand.New(rand.NewSource(seed)))
		for i := range in {
			if out[i].ID != in[i].ID {
				moved = true
				break
			}
		}
	}
	if !moved {
		t.Fatal("expected at least one seed to reorder the flattened quiz")
	}
}
