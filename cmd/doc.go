package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/document"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/ui/theme"
	"github.com/spf13/cobra"
)

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Index and remove study documents",
}

var docAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Chunk, embed and index documents for retrieval",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kindVal, _ := cmd.Flags().GetString("kind")
		setVal, _ := cmd.Flags().GetString("set")

		kind, err := document.ParseKind(kindVal)
		if err != nil {
			return err
		}
		var setID uuid.UUID
		if setVal != "" {
			if setID, err = uuid.Parse(setVal); err != nil {
				return fmt.Errorf("invalid set ID %q: %w", setVal, err)
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

		for _, path := range args {
			doc := ingest.FileDocument(path, kind)
			doc.FlashcardSetID = setID
			name, err := rt.svc.EmbedDocument(ctx, doc)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s  %s\n", theme.Mark(true), doc.ID, theme.Hint.Render(name))
		}
		return nil
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Remove a document's chunks from the index",
	Args:  cobra.ExactArgs(1),
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

		n, err := rt.svc.DeleteDocumentEmbedding(ctx, args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Println("No chunks found for", args[0])
			return nil
		}
		fmt.Printf("Removed %d chunks of %s\n", n, args[0])
		return nil
	},
}

func init() {
	docAddCmd.Flags().String("kind", "generic", "Document kind: generic or structured-pdf")
	docAddCmd.Flags().String("set", "", "Flashcard set ID to attach the documents to")

	docCmd.AddCommand(docAddCmd)
	docCmd.AddCommand(docDeleteCmd)
}
