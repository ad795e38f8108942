package models

// Failure explains why a question has no generated answer.
type Failure string

const (
	FailureNone       Failure = ""
	FailureNoContext  Failure = "no_context"
	FailureGeneration Failure = "generation_failed"
)

// QuestionResult is the outcome of one analytical question.
// Answer always holds displayable text: the generated answer or a placeholder.
type QuestionResult struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Failure  Failure `json:"failure,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

// OK reports whether the answer was generated.
func (q QuestionResult) OK() bool {
	return q.Failure == FailureNone
}

// Analysis is the ordered list of question outcomes for one item.
type Analysis []QuestionResult

// Map flattens the analysis into question -> answer.
func (a Analysis) Map() map[string]string {
	out := make(map[string]string, len(a))
	for _, q := range a {
		out[q.Question] = q.Answer
	}
	return out
}

// Failed counts questions that fell back to a placeholder.
func (a Analysis) Failed() int {
	n := 0
	for _, q := range a {
		if !q.OK() {
			n++
		}
	}
	return n
}
