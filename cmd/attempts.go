package cmd

import (
	"fmt"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/ui/theme"
	"github.com/spf13/cobra"
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Review quiz attempts",
}

var attemptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attempts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		quizVal, _ := cmd.Flags().GetString("quiz")
		pageNum, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("size")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx, err := rt.userContext(cmd)
		if err != nil {
			return err
		}

		page := study.Page{Number: pageNum - 1, Size: size}
		var res *study.AttemptPage
		if quizVal != "" {
			quizID, err := uuid.Parse(quizVal)
			if err != nil {
				return fmt.Errorf("invalid quiz ID %q: %w", quizVal, err)
			}
			res, err = rt.svc.Attempts().ListByQuiz(ctx, quizID, page)
			if err != nil {
				return err
			}
		} else {
			res, err = rt.svc.Attempts().ListByUser(ctx, page)
			if err != nil {
				return err
			}
		}

		if len(res.Items) == 0 {
			fmt.Println("No attempts found.")
			return nil
		}

		fmt.Printf("%-36s  %-36s  %-16s  %7s  %s\n", "ID", "Quiz", "Date", "Answers", "Score")
		fmt.Println(strings.Repeat("─", 112))
		for _, a := range res.Items {
			lipgloss.Printf("%-36s  %-36s  %-16s  %7d  %s\n",
				a.ID, a.QuizID, a.AttemptDate.Local().Format("2006-01-02 15:04"), len(a.Responses), theme.Score(a.Score))
		}
		fmt.Printf("\nPage %d of %d (%d attempts)\n", res.CurrentPage+1, max(res.TotalPages, 1), res.TotalElements)
		return nil
	},
}

var attemptsShowCmd = &cobra.Command{
	Use:   "show <attempt-id>",
	Short: "Show an attempt with per-question feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid attempt ID %q: %w", args[0], err)
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

		a, err := rt.svc.Attempts().Get(ctx, id)
		if err != nil {
			return err
		}
		quiz, err := rt.svc.Quiz(ctx, a.QuizID)
		if err != nil {
			return err
		}
		lipgloss.Println(theme.Title.Render(quiz.Title))
		renderAttempt(os.Stdout, quiz, a)
		return nil
	},
}

var attemptsDeleteCmd = &cobra.Command{
	Use:   "delete <attempt-id>",
	Short: "Delete one of your attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid attempt ID %q: %w", args[0], err)
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

		if err := rt.svc.Attempts().Delete(ctx, id); err != nil {
			return err
		}
		fmt.Println("Deleted attempt", id)
		return nil
	},
}

func init() {
	attemptsListCmd.Flags().String("quiz", "", "Only attempts of this quiz (authors see every learner)")
	attemptsListCmd.Flags().Int("page", 1, "Page number, starting at 1")
	attemptsListCmd.Flags().Int("size", 20, "Attempts per page")

	attemptsCmd.AddCommand(attemptsListCmd)
	attemptsCmd.AddCommand(attemptsShowCmd)
	attemptsCmd.AddCommand(attemptsDeleteCmd)
}
