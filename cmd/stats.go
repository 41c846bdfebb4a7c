package cmd

import (
	"fmt"
	"math"

	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/ui/theme"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show average quiz scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		quizVal, _ := cmd.Flags().GetString("quiz")

		quizID := uuid.Nil
		if quizVal != "" {
			var err error
			if quizID, err = uuid.Parse(quizVal); err != nil {
				return fmt.Errorf("invalid quiz ID %q: %w", quizVal, err)
			}
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

		mine, err := rt.svc.Attempts().AverageScore(ctx, quizID)
		if err != nil {
			return err
		}
		if quizID == uuid.Nil {
			lipgloss.Println(theme.Field("Your average score", theme.Score(int(math.Round(mine)))))
			return nil
		}

		quiz, err := rt.svc.Quiz(ctx, quizID)
		if err != nil {
			return err
		}
		all, err := rt.svc.Attempts().QuizAverageScore(ctx, quizID)
		if err != nil {
			return err
		}
		lipgloss.Println(theme.Title.Render(quiz.Title))
		lipgloss.Println(theme.Field("Your average score", theme.Score(int(math.Round(mine)))))
		lipgloss.Println(theme.Field("Average over visible attempts", theme.Score(int(math.Round(all)))))
		return nil
	},
}

func init() {
	statsCmd.Flags().String("quiz", "", "Limit to one quiz")
}
