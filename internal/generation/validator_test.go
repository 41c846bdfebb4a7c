package generation

import (
	"testing"

	"github.com/monetadev/moneta/internal/study"
)

func validQuiz() *study.GeneratedQuiz {
	return &study.GeneratedQuiz{
		Title:       "Cells",
		Description: "Organelles",
		Questions: []study.GeneratedQuestion{
			trueFalse(1),
			{
				Content:  "Which organelles contain DNA?",
				Position: 2,
				Type:     study.MultipleChoiceMulti,
				Options: []study.GeneratedOption{
					{Content: "Nucleus", Position: 1, Correct: ptr(true)},
					{Content: "Mitochondrion", Position: 2, Correct: ptr(true)},
					{Content: "Golgi body", Position: 3, Correct: ptr(false)},
				},
			},
			{
				Content:  "Name the powerhouse of the cell.",
				Position: 3,
				Type:     study.ShortAnswer,
				Options:  []study.GeneratedOption{{Content: "Mitochondrion", Position: 1, Correct: ptr(true)}},
			},
		},
	}
}

func TestStructural_ValidQuiz(t *testing.T) {
	v := &StructuralValidator{}
	if err := v.ValidateQuiz(validQuiz(), QuizOptions{K: 3}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestStructural_QuizTooManyQuestions(t *testing.T) {
	v := &StructuralValidator{}
	err := v.ValidateQuiz(validQuiz(), QuizOptions{K: 2})
	if err == nil {
		t.Fatal("expected error for too many questions")
	}
	if err.Validator != "structural" {
		t.Errorf("expected validator %q, got %q", "structural", err.Validator)
	}
}

func TestStructural_QuizOptionPositions(t *testing.T) {
	v := &StructuralValidator{}
	q := validQuiz()
	q.Questions[1].Options[2].Position = 1
	if err := v.ValidateQuiz(q, QuizOptions{K: 3}); err == nil {
		t.Fatal("expected error for duplicate option position")
	}

	q = validQuiz()
	q.Questions[2].Options = nil
	if err := v.ValidateQuiz(q, QuizOptions{K: 3}); err == nil {
		t.Fatal("expected error for question without options")
	}
}

func TestStructural_EmptyDefinition(t *testing.T) {
	v := &StructuralValidator{}
	set := cards(2)
	set.Flashcards[1].Definition = "  "
	if err := v.ValidateFlashcards(set, FlashcardOptions{K: 2}); err == nil {
		t.Fatal("expected error for blank definition")
	}
}

func TestQuestionType_AllowsRequestedOnly(t *testing.T) {
	v := &QuestionTypeValidator{}
	if err := v.ValidateQuiz(validQuiz(), QuizOptions{}); err != nil {
		t.Fatalf("all types allowed by default, got %v", err)
	}
	err := v.ValidateQuiz(validQuiz(), QuizOptions{Types: []study.QuestionType{study.TrueFalse, study.ShortAnswer}})
	if err == nil {
		t.Fatal("expected error for MULTIPLE_CHOICE_MULTI")
	}
}

func TestAnswerKey(t *testing.T) {
	v := &AnswerKeyValidator{}
	if err := v.ValidateQuiz(validQuiz(), QuizOptions{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	single := validQuiz()
	single.Questions[1].Type = study.MultipleChoiceSingle
	if err := v.ValidateQuiz(single, QuizOptions{}); err == nil {
		t.Error("expected error for single-answer question with two correct options")
	}

	tf := validQuiz()
	tf.Questions[0].Options[1].Correct = ptr(true)
	if err := v.ValidateQuiz(tf, QuizOptions{}); err == nil {
		t.Error("expected error for true/false with both options correct")
	}

	short := validQuiz()
	short.Questions[2].Options[0].Correct = ptr(false)
	if err := v.ValidateQuiz(short, QuizOptions{}); err == nil {
		t.Error("expected error for short answer without a correct option")
	}

	unmarked := validQuiz()
	for i := range unmarked.Questions {
		for j := range unmarked.Questions[i].Options {
			unmarked.Questions[i].Options[j].Correct = nil
		}
	}
	if err := v.ValidateQuiz(unmarked, QuizOptions{}); err != nil {
		t.Errorf("quizzes without an answer key pass, got %v", err)
	}
}

func TestAllowedTypesDeduplicates(t *testing.T) {
	got := QuizOptions{Types: []study.QuestionType{study.TrueFalse, study.ShortAnswer, study.TrueFalse}}.AllowedTypes()
	if len(got) != 2 || got[0] != study.TrueFalse || got[1] != study.ShortAnswer {
		t.Errorf("unexpected types %v", got)
	}
}
