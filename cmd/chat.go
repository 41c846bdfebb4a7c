package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/ui/theme"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about a flashcard set",
	Long: `Chat with a study assistant about a flashcard set. Each message is
answered with the set and matching passages from your documents in view.

With MONETA_REDIS_URL set the conversation is remembered between runs;
pass --conversation to keep several apart. Type /reset to start over and
/quit to leave.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		setVal, _ := cmd.Flags().GetString("set")
		conv, _ := cmd.Flags().GetString("conversation")
		message, _ := cmd.Flags().GetString("message")

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

		set, err := rt.svc.FlashcardSet(ctx, setID)
		if err != nil {
			return err
		}

		if message != "" {
			reply, err := rt.svc.Chat(ctx, conv, setID, message)
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		}

		lipgloss.Println(theme.Title.Render("Studying: " + set.Title))
		lipgloss.Println(theme.Hint.Render("/reset to start over, /quit to leave"))
		scanner := bufio.NewScanner(os.Stdin)
		for {
			lipgloss.Print("\n" + theme.Label.Render("you> "))
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/reset":
				if err := rt.svc.ResetChat(ctx, conv, setID); err != nil {
					return err
				}
				lipgloss.Println(theme.Hint.Render("Conversation cleared."))
				continue
			}

			reply, err := rt.svc.Chat(ctx, conv, setID, line)
			if err != nil {
				lipgloss.Println(theme.Incorrect.Render("error: ") + err.Error())
				continue
			}
			lipgloss.Println(theme.Body.Render(reply))
		}
	},
}

func init() {
	chatCmd.Flags().String("set", "", "Flashcard set ID (required)")
	chatCmd.Flags().String("conversation", "default", "Conversation name")
	chatCmd.Flags().StringP("message", "m", "", "Send one message and print the reply")
	_ = chatCmd.MarkFlagRequired("set")

	chatCmd.AddCommand(chatResetCmd)
}
