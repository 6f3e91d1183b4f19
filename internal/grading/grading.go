// Package grading scores a single question instance's stored response
// against its answer key. Grading routes by question type to a Strategy,
// so new paper-friendly types can be added without touching callers.
package grading

import (
	"strconv"
	"strings"
)

// Question types understood by the default grader. Anything else needs
// manual grading.
const (
	TypeDescription  = "description"
	TypeSingleChoice = "single_choice"
	TypeMultiChoice  = "multi_choice"
)

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type      string
	MaxMark   float64
	Choices   int
	AnswerKey []int // correct choice ordinals, 0-based
}

// Result is the outcome of grading one response.
type Result struct {
	Mark        float64
	MaxMark     float64
	NeedsManual bool
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(q Q, response map[string]string) Result
}

// Grader routes by question type to the right Strategy.
type Grader struct {
	strategies map[string]Strategy
}

func NewGrader() *Grader {
	return &Grader{strategies: map[string]Strategy{
		TypeSingleChoice: singleChoiceStrategy{},
		TypeMultiChoice:  multiChoiceStrategy{},
		TypeDescription:  descriptionStrategy{},
	}}
}

func (g *Grader) Grade(q Q, response map[string]string) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxMark: q.MaxMark, NeedsManual: true}
	}
	return s.Grade(q, response)
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q Q, response map[string]string) Result {
	res := Result{MaxMark: q.MaxMark}
	raw, ok := response["answer"]
	if !ok || strings.TrimSpace(raw) == "" {
		return res
	}
	selected, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return res
	}
	for _, k := range q.AnswerKey {
		if selected == k {
			res.Mark = q.MaxMark
			return res
		}
	}
	return res
}

type multiChoiceStrategy struct{}

// Full marks for exactly the correct selection set, zero otherwise.
func (multiChoiceStrategy) Grade(q Q, response map[string]string) Result {
	res := Result{MaxMark: q.MaxMark}
	selected := map[int]bool{}
	for i := 0; i < q.Choices; i++ {
		if response["choice"+strconv.Itoa(i)] == "1" {
			selected[i] = true
		}
	}
	if len(selected) != len(q.AnswerKey) || len(q.AnswerKey) == 0 {
		return res
	}
	for _, k := range q.AnswerKey {
		if !selected[k] {
			return res
		}
	}
	res.Mark = q.MaxMark
	return res
}

type descriptionStrategy struct{}

// Descriptions carry no marks and never need grading.
func (descriptionStrategy) Grade(Q, map[string]string) Result { return Result{} }
