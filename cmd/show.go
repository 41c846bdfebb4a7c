package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Browse flashcard sets and quizzes",
}

var showSetsCmd = &cobra.Command{
	Use:   "sets",
	Short: "List your flashcard sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx, err := rt.userContext(cmd)
		if err != nil {
			return err
		}

		sets, err := rt.svc.FlashcardSets(ctx)
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			fmt.Println("No flashcard sets yet. Try: moneta generate flashcards -q <topic>")
			return nil
		}

		fmt.Printf("%-36s  %-40s  %5s  %s\n", "ID", "Title", "Cards", "Public")
		fmt.Println(strings.Repeat("─", 92))
		for _, s := range sets {
			public := ""
			if s.IsPublic {
				public = "yes"
			}
			fmt.Printf("%-36s  %-40s  %5d  %s\n", s.ID, ellipsize(s.Title, 40), len(s.Flashcards), public)
		}
		fmt.Printf("\n%d sets\n", len(sets))
		return nil
	},
}

var showSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Print a flashcard set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid set ID %q: %w", args[0], err)
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

		set, err := rt.svc.FlashcardSet(ctx, id)
		if err != nil {
			return err
		}
		renderFlashcardSet(os.Stdout, set)
		return nil
	},
}

var showQuizzesCmd = &cobra.Command{
	Use:   "quizzes",
	Short: "List your quizzes",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx, err := rt.userContext(cmd)
		if err != nil {
			return err
		}

		quizzes, err := rt.svc.Quizzes(ctx)
		if err != nil {
			return err
		}
		if len(quizzes) == 0 {
			fmt.Println("No quizzes yet. Try: moneta generate quiz --set <set-id>")
			return nil
		}

		fmt.Printf("%-36s  %-40s  %9s  %s\n", "ID", "Title", "Questions", "Created")
		fmt.Println(strings.Repeat("─", 104))
		for _, q := range quizzes {
			fmt.Printf("%-36s  %-40s  %9d  %s\n",
				q.ID, ellipsize(q.Title, 40), len(q.Questions), q.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Printf("\n%d quizzes\n", len(quizzes))
		return nil
	},
}

var showQuizCmd = &cobra.Command{
	Use:   "quiz <id>",
	Short: "Print a quiz",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answers, _ := cmd.Flags().GetBool("answers")
		id, err := uuid.Parse(args[0])
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

		quiz, err := rt.svc.Quiz(ctx, id)
		if err != nil {
			return err
		}
		renderQuiz(os.Stdout, quiz, answers)
		return nil
	},
}

func init() {
	showQuizCmd.Flags().Bool("answers", false, "Mark the correct options")

	showCmd.AddCommand(showSetsCmd)
	showCmd.AddCommand(showSetCmd)
	showCmd.AddCommand(showQuizzesCmd)
	showCmd.AddCommand(showQuizCmd)
}

func ellipsize(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
