package attempt

import (
	"strings"

	"github.com/monetadev/moneta/internal/study"
)

// Correct reports whether response answers q:
//   - multiple choice: the response equals or contains a correct option,
//     case-sensitively
//   - true/false: the response equals a correct option, ignoring case
//   - short answer: the response equals the first correct option,
//     ignoring case
//
// The response is trimmed in every case. A question without a correct
// option is never answered correctly.
func Correct(q *study.Question, response string) bool {
	resp := strings.TrimSpace(response)
	if resp == "" {
		return false
	}
	keys := q.CorrectOptions()

	switch q.Type {
	case study.MultipleChoiceSingle, study.MultipleChoiceMulti:
		for _, o := range keys {
			want := strings.TrimSpace(o.Content)
			if want != "" && strings.Contains(resp, want) {
				return true
			}
		}
	case study.TrueFalse:
		for _, o := range keys {
			if strings.EqualFold(resp, strings.TrimSpace(o.Content)) {
				return true
			}
		}
	case study.ShortAnswer:
		if len(keys) > 0 {
			return strings.EqualFold(resp, strings.TrimSpace(keys[0].Content))
		}
	}
	return false
}

// Feedback is the fixed note attached to a deterministically graded answer.
func Feedback(q *study.Question, correct bool) string {
	if correct {
		return "Correct."
	}
	keys := q.CorrectOptions()
	if len(keys) == 0 {
		return "Incorrect."
	}
	answers := make([]string, len(keys))
	for i, o := range keys {
		answers[i] = o.Content
	}
	if q.Type == study.ShortAnswer {
		answers = answers[:1]
	}
	return "Incorrect. Expected: " + strings.Join(answers, ", ") + "."
}
