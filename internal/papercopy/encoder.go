package papercopy

import (
	"strconv"
	"strings"

	"github.com/mind-engage/papercopy/internal/grading"
	"github.com/mind-engage/papercopy/internal/qusage"
)

// ResponseEncoder turns one CSV answer cell into the response map the
// item-instance runtime expects for a given question type.
type ResponseEncoder interface {
	Encode(q qusage.Question, cell string) map[string]string
}

// encoderFor dispatches on the external question-type tag. Unknown types
// get the passthrough encoder.
func encoderFor(qtype string) ResponseEncoder {
	switch qtype {
	case grading.TypeSingleChoice:
		return singleChoiceEncoder{}
	case grading.TypeMultiChoice:
		return multiChoiceEncoder{}
	default:
		return passthroughEncoder{}
	}
}

type singleChoiceEncoder struct{}

// A cell is either a bubble letter ("B") or a 1-based ordinal ("2"); both
// map to the 0-based selection index. Unreadable cells produce no response.
func (singleChoiceEncoder) Encode(_ qusage.Question, cell string) map[string]string {
	idx := choiceIndex(cell)
	if idx < 0 {
		return nil
	}
	return map[string]string{"answer": strconv.Itoa(idx)}
}

type multiChoiceEncoder struct{}

// Multi-select cells arrive as a bracketed comma list ("[A,C]"), expanded
// to one boolean flag per choice ordinal.
func (multiChoiceEncoder) Encode(q qusage.Question, cell string) map[string]string {
	cell = strings.TrimSpace(cell)
	cell = strings.TrimPrefix(cell, "[")
	cell = strings.TrimSuffix(cell, "]")
	selected := map[int]bool{}
	for _, part := range strings.Split(cell, ",") {
		if idx := choiceIndex(part); idx >= 0 {
			selected[idx] = true
		}
	}
	out := make(map[string]string, q.Choices)
	for i := 0; i < q.Choices; i++ {
		if selected[i] {
			out["choice"+strconv.Itoa(i)] = "1"
		} else {
			out["choice"+strconv.Itoa(i)] = "0"
		}
	}
	return out
}

type passthroughEncoder struct{}

func (passthroughEncoder) Encode(_ qusage.Question, cell string) map[string]string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	return map[string]string{"answer": cell}
}

// choiceIndex decodes a single answer token to a 0-based index: a lone
// letter counts from A, anything else is read as a 1-based number.
// Returns -1 when the token decodes to nothing usable.
func choiceIndex(token string) int {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return -1
	}
	if len(token) == 1 && token[0] >= 'A' && token[0] <= 'Z' {
		return int(token[0] - 'A')
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return -1
	}
	return n - 1
}
