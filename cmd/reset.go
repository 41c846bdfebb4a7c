package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget a study chat conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		setVal, _ := cmd.Flags().GetString("set")
		conv, _ := cmd.Flags().GetString("conversation")

		setID, err := uuid.Parse(setVal)
		if err != nil {
			return fmt.Errorf("invalid set ID %q: %w", setVal, err)
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

		if err := rt.svc.ResetChat(ctx, conv, setID); err != nil {
			return err
		}
		fmt.Printf("Conversation %q cleared\n", conv)
		return nil
	},
}

func init() {
	chatResetCmd.Flags().String("set", "", "Flashcard set ID (required)")
	chatResetCmd.Flags().String("conversation", "default", "Conversation name")
	_ = chatResetCmd.MarkFlagRequired("set")
}
