package papercopy

import (
	"reflect"
	"testing"

	"github.com/mind-engage/papercopy/internal/grading"
	"github.com/mind-engage/papercopy/internal/qusage"
)

func TestSingleChoiceEncoder(t *testing.T) {
	q := qusage.Question{Type: grading.TypeSingleChoice, Choices: 4}
	enc := encoderFor(q.Type)

	cases := []struct {
		cell string
		want map[string]string
	}{
		{"B", map[string]string{"answer": "1"}},
		{"a", map[string]string{"answer": "0"}},
		{"2", map[string]string{"answer": "1"}},
		{" D ", map[string]string{"answer": "3"}},
		{"", nil},
		{"??", nil},
	}
	for _, c := range cases {
		if got := enc.Encode(q, c.cell); !reflect.DeepEqual(got, c.want) {
			t.Errorf("Encode(%q) = %v, want %v", c.cell, got, c.want)
		}
	}
}

func TestMultiChoiceEncoder(t *testing.T) {
	q := qusage.Question{Type: grading.TypeMultiChoice, Choices: 4}
	enc := encoderFor(q.Type)

	got := enc.Encode(q, "[A,C]")
	want := map[string]string{"choice0": "1", "choice1": "0", "choice2": "1", "choice3": "0"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Encode([A,C]) = %v, want %v", got, want)
	}

	got = enc.Encode(q, "[B]")
	if got["choice1"] != "1" || got["choice0"] != "0" {
		t.Fatalf("Encode([B]) = %v", got)
	}

	// Empty selection still expands to all-zero flags.
	got = enc.Encode(q, "[]")
	for k, v := range got {
		if v != "0" {
			t.Fatalf("Encode([]) set %s=%s", k, v)
		}
	}
	if len(got) != 4 {
		t.Fatalf("Encode([]) should cover all 4 ordinals, got %v", got)
	}
}

func TestPassthroughEncoder(t *testing.T) {
	q := qusage.Question{Type: "shortanswer"}
	enc := encoderFor(q.Type)

	if got := enc.Encode(q, "some text"); got["answer"] != "some text" {
		t.Fatalf("Encode = %v", got)
	}
	if got := enc.Encode(q, "  "); got != nil {
		t.Fatalf("blank cell should encode to nothing, got %v", got)
	}
}
