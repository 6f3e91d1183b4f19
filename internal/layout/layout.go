// Package layout produces the question ordering for a single printed copy.
// It is pure: given the same question list, options and RNG it always yields
// the same arrangement, which keeps copy generation reproducible in tests.
package layout

import "math/rand"

// TypeDescription marks a non-answerable element. Description elements can
// be pinned as a page's lead item when the page contents are shuffled.
const TypeDescription = "description"

// Question is the minimal view of a quiz question the layout engine needs.
// Page is the 1-based page grouping; boundaries are significant for every
// page-aware shuffle mode.
type Question struct {
	ID   int64
	Type string
	Page int
}

type ShuffleMode int

const (
	// NoShuffle keeps the quiz's original ordering.
	NoShuffle ShuffleMode = iota
	// ShuffleIgnoringPages flattens all pages and shuffles the whole set.
	ShuffleIgnoringPages
	// ShuffleWithinPageOnly shuffles each page's contents independently,
	// keeping pages in their original order.
	ShuffleWithinPageOnly
	// ShufflePagesOnly shuffles the sequence of pages, keeping each page's
	// internal order.
	ShufflePagesOnly
	// ShuffleAll shuffles the page order and each page's contents.
	ShuffleAll
)

// Options selects a shuffle mode and its pinning flags. FixFirstPage and
// FixLastPage apply only when pages are shuffled; FixDescriptionLead keeps a
// page's leading description element first whenever that page's contents are
// shuffled.
type Options struct {
	Mode               ShuffleMode
	FixFirstPage       bool
	FixLastPage        bool
	FixDescriptionLead bool
}

// Arrange returns a new ordering of questions according to opts. The result
// always contains exactly the input questions; only their order changes.
func Arrange(questions []Question, opts Options, rng *rand.Rand) []Question {
	switch opts.Mode {
	case ShuffleIgnoringPages:
		return shuffleQuestions(questions, false, false, rng)

	case ShuffleWithinPageOnly:
		return mergePages(shuffleWithinPages(splitPages(questions), opts.FixDescriptionLead, rng))

	case ShufflePagesOnly:
		pages := shufflePages(splitPages(questions), opts.FixFirstPage, opts.FixLastPage, rng)
		return mergePages(pages)

	case ShuffleAll:
		pages := shufflePages(splitPages(questions), opts.FixFirstPage, opts.FixLastPage, rng)
		return mergePages(shuffleWithinPages(pages, opts.FixDescriptionLead, rng))

	default: // NoShuffle
		out := make([]Question, len(questions))
		copy(out, questions)
		return out
	}
}

// splitPages groups questions by page, pages ordered by first appearance.
func splitPages(questions []Question) [][]Question {
	var pages [][]Question
	index := map[int]int{}
	for _, q := range questions {
		i, ok := index[q.Page]
		if !ok {
			i = len(pages)
			index[q.Page] = i
			pages = append(pages, nil)
		}
		pages[i] = append(pages[i], q)
	}
	return pages
}

func mergePages(pages [][]Question) []Question {
	var out []Question
	for _, p := range pages {
		out = append(out, p...)
	}
	if out == nil {
		out = []Question{}
	}
	return out
}

func shuffleWithinPages(pages [][]Question, fixDescriptionLead bool, rng *rand.Rand) [][]Question {
	out := make([][]Question, len(pages))
	for i, page := range pages {
		pinLead := fixDescriptionLead && len(page) > 0 && page[0].Type == TypeDescription
		out[i] = shuffleQuestions(page, pinLead, false, rng)
	}
	return out
}

func shuffleQuestions(list []Question, fixFirst, fixLast bool, rng *rand.Rand) []Question {
	out := make([]Question, len(list))
	copy(out, list)
	for i, j := range permIndexes(len(list), fixFirst, fixLast, rng) {
		out[i] = list[j]
	}
	return out
}

func shufflePages(pages [][]Question, fixFirst, fixLast bool, rng *rand.Rand) [][]Question {
	out := make([][]Question, len(pages))
	copy(out, pages)
	for i, j := range permIndexes(len(pages), fixFirst, fixLast, rng) {
		out[i] = pages[j]
	}
	return out
}

// permIndexes returns a random permutation of [0,n), optionally pinning the
// first and/or last position in place. Degenerate inputs (fewer than two
// movable elements) come back as the identity permutation.
func permIndexes(n int, fixFirst, fixLast bool, rng *rand.Rand) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	lo, hi := 0, n // movable half-open range
	if fixFirst {
		lo++
	}
	if fixLast {
		hi--
	}
	if hi-lo < 2 {
		return perm
	}

	movable := perm[lo:hi]
	rng.Shuffle(len(movable), func(i, j int) {
		movable[i], movable[j] = movable[j], movable[i]
	})
	return perm
}
