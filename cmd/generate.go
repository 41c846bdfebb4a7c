package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/document"
	"github.com/monetadev/moneta/internal/generation"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/pipeline"
	"github.com/monetadev/moneta/internal/study"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate flashcard sets and quizzes",
}

var generateFlashcardsCmd = &cobra.Command{
	Use:   "flashcards",
	Short: "Generate a flashcard set from your indexed documents or a file",
	Long: `Generate a flashcard set.

Without --file the set is built from chunks of your indexed documents that
match the query. With --file the document itself is read, condensed and used
as the only source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		k, _ := cmd.Flags().GetInt("count")
		modeVal, _ := cmd.Flags().GetString("mode")
		file, _ := cmd.Flags().GetString("file")
		kindVal, _ := cmd.Flags().GetString("kind")
		public, _ := cmd.Flags().GetBool("public")
		attach, _ := cmd.Flags().GetBool("attach")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		mode, err := generation.ParseMode(modeVal)
		if err != nil {
			return err
		}
		opts := generation.FlashcardOptions{Query: query, K: k, Mode: mode}

		var doc ingest.Document
		if file != "" {
			kind, err := document.ParseKind(kindVal)
			if err != nil {
				return err
			}
			doc = ingest.FileDocument(file, kind)
			opts.Reference = &doc
		} else if attach {
			return fmt.Errorf("--attach requires --file")
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

		fmt.Fprintf(os.Stderr, "Generating %d flashcards (%s)...\n", k, mode)
		g, err := rt.svc.GenerateFlashcardSet(ctx, opts)
		if err != nil {
			return err
		}

		if dryRun {
			set, err := study.NewFlashcardSetFromGenerated(g, uuid.Nil)
			if err != nil {
				return err
			}
			set.ID = uuid.Nil
			renderFlashcardSet(os.Stdout, set)
			return nil
		}

		save := pipeline.SaveOptions{Public: public}
		if attach {
			save.Attach = []ingest.Document{doc}
		}
		set, err := rt.svc.SaveFlashcardSet(ctx, g, save)
		if err != nil {
			return err
		}
		renderFlashcardSet(os.Stdout, set)
		return nil
	},
}

var generateQuizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Generate a quiz from a flashcard set",
	RunE: func(cmd *cobra.Command, args []string) error {
		setVal, _ := cmd.Flags().GetString("set")
		k, _ := cmd.Flags().GetInt("count")
		typeVals, _ := cmd.Flags().GetStringSlice("types")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		setID, err := uuid.Parse(setVal)
		if err != nil {
			return fmt.Errorf("invalid set ID %q: %w", setVal, err)
		}
		var types []study.QuestionType
		for _, v := range typeVals {
			t, ok := study.ParseQuestionType(v)
			if !ok {
				return fmt.Errorf("unknown question type %q", v)
			}
			types = append(types, t)
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

		fmt.Fprintf(os.Stderr, "Generating %d questions...\n", k)
		g, err := rt.svc.GenerateQuiz(ctx, generation.QuizOptions{SetID: setID, K: k, Types: types})
		if err != nil {
			return err
		}

		if dryRun {
			quiz, err := study.NewQuizFromGenerated(g, uuid.Nil, setID)
			if err != nil {
				return err
			}
			quiz.ID = uuid.Nil
			renderQuiz(os.Stdout, quiz, true)
			return nil
		}

		quiz, err := rt.svc.SaveQuiz(ctx, g, setID)
		if err != nil {
			return err
		}
		renderQuiz(os.Stdout, quiz, false)
		fmt.Printf("\nTake it with: moneta take %s\n", quiz.ID)
		return nil
	},
}

func init() {
	f := generateFlashcardsCmd.Flags()
	f.StringP("query", "q", "", "Topic to generate flashcards about (required)")
	f.IntP("count", "k", 10, "Maximum number of flashcards")
	f.String("mode", "brief", "Definition length: brief or verbose")
	f.String("file", "", "Generate from this document instead of the index")
	f.String("kind", "generic", "Document kind for --file: generic or structured-pdf")
	f.Bool("attach", false, "Index --file and attach it to the saved set")
	f.Bool("public", false, "Make the saved set visible to other users")
	f.Bool("dry-run", false, "Print the generated set without saving it")
	_ = generateFlashcardsCmd.MarkFlagRequired("query")

	q := generateQuizCmd.Flags()
	q.String("set", "", "Flashcard set ID (required)")
	q.IntP("count", "k", 5, "Number of questions")
	q.StringSlice("types", nil, "Allowed question types, e.g. "+strings.Join(typeNames(), ","))
	q.Bool("dry-run", false, "Print the generated quiz with answers without saving it")
	_ = generateQuizCmd.MarkFlagRequired("set")

	generateCmd.AddCommand(generateFlashcardsCmd)
	generateCmd.AddCommand(generateQuizCmd)
}

func typeNames() []string {
	names := make([]string, len(study.AllQuestionTypes))
	for i, t := range study.AllQuestionTypes {
		names[i] = string(t)
	}
	return names
}
