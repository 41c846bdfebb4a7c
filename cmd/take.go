package cmd

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/attempt"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/ui/theme"
	"github.com/spf13/cobra"
)

var takeCmd = &cobra.Command{
	Use:   "take <quiz-id>",
	Short: "Take a quiz and have it graded",
	Long: `Answer a quiz question by question, then grade the attempt.

Choice questions accept option numbers ("2" or "1,3") or the option text.
By default the model grades the attempt with context from your documents;
--offline checks answers against the stored answer key instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")
		preset, _ := cmd.Flags().GetStringArray("answer")

		quizID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid quiz ID %q: %w", args[0], err)
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx, err := rt.userContext(cmd)
		if err != nil {
			return err
		}

		quiz, err := rt.svc.Quiz(ctx, quizID)
		if err != nil {
			return err
		}

		var responses []study.AnswerInput
		if len(preset) > 0 {
			responses, err = parseAnswers(quiz, preset)
			if err != nil {
				return err
			}
		} else {
			responses = askQuestions(quiz)
		}
		if len(responses) == 0 {
			fmt.Println("No answers given; nothing to grade.")
			return nil
		}

		input := study.AttemptInput{QuizID: quiz.ID, Responses: responses}
		var res *attempt.Result
		if offline {
			res, err = rt.svc.CheckQuiz(ctx, input)
		} else {
			fmt.Fprintln(os.Stderr, "Grading...")
			res, err = rt.svc.GradeQuiz(ctx, input)
		}
		if err != nil {
			return err
		}

		lipgloss.Println()
		lipgloss.Println(theme.Separator(40))
		renderAttempt(os.Stdout, quiz, res.Attempt)
		if len(res.Dropped) > 0 {
			lipgloss.Println(theme.Warning.Render(fmt.Sprintf("Ignored grader output for unknown positions %v", res.Dropped)))
		}
		return nil
	},
}

func init() {
	takeCmd.Flags().Bool("offline", false, "Grade against the answer key without the model")
	takeCmd.Flags().StringArray("answer", nil, "Non-interactive answer as position=response (repeatable)")
}

// askQuestions prompts on stdin for each question in position order. Empty
// answers are skipped.
func askQuestions(quiz *study.Quiz) []study.AnswerInput {
	questions := slices.Clone(quiz.Questions)
	slices.SortStableFunc(questions, func(a, b study.Question) int { return a.Position - b.Position })

	scanner := bufio.NewScanner(os.Stdin)
	var out []study.AnswerInput
	for i, q := range questions {
		lipgloss.Println(theme.Hint.Render(fmt.Sprintf("── Question %d/%d ──", i+1, len(questions))))
		lipgloss.Println(renderQuestion(q, false))
		fmt.Print("\nYour answer: ")
		if !scanner.Scan() {
			fmt.Println("\n(input closed)")
			break
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			fmt.Println("(skipped)")
			fmt.Println()
			continue
		}
		out = append(out, study.AnswerInput{Position: q.Position, Response: expandResponse(q, answer)})
		fmt.Println()
	}
	return out
}

func parseAnswers(quiz *study.Quiz, values []string) ([]study.AnswerInput, error) {
	byPos := quiz.QuestionsByPosition()
	out := make([]study.AnswerInput, 0, len(values))
	for _, v := range values {
		posVal, resp, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("answer %q: want position=response", v)
		}
		pos, err := strconv.Atoi(strings.TrimSpace(posVal))
		if err != nil {
			return nil, fmt.Errorf("answer %q: invalid position: %w", v, err)
		}
		if q, ok := byPos[pos]; ok {
			resp = expandResponse(*q, resp)
		}
		out = append(out, study.AnswerInput{Position: pos, Response: strings.TrimSpace(resp)})
	}
	return out, nil
}

// expandResponse replaces option numbers with option text for choice
// questions. Anything that is not a list of known option numbers is kept
// as typed.
func expandResponse(q study.Question, answer string) string {
	if q.Type == study.ShortAnswer {
		return answer
	}
	byPos := make(map[int]string, len(q.Options))
	for _, o := range q.Options {
		byPos[o.Position] = o.Content
	}

	var picked []string
	for _, part := range strings.Split(answer, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return answer
		}
		content, ok := byPos[n]
		if !ok {
			return answer
		}
		picked = append(picked, content)
	}
	return strings.Join(picked, ", ")
}
