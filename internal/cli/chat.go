package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <hash-id> <question...>",
	Short: "Ask a question about an analyzed item",
	Long: `Answer a question from the indexed full text of an item, identified by
the hash_id printed by 'radar run'.

In-process mode only sees items indexed by the same process, so chat is
most useful with --server.

Examples:
  radar chat 3f2a... "What dataset do they evaluate on?" --server http://localhost:8000`,
	Args: cobra.MinimumNArgs(2),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	hash := args[0]
	question := strings.Join(args[1:], " ")

	var answer string
	var sources []string
	if c, ok := remote(); ok {
		out, err := c.Chat(ctx, hash, question)
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		answer, sources = out.Answer, out.Sources
	} else {
		r, err := getRadar(ctx)
		if err != nil {
			return err
		}
		out, err := r.Chat(ctx, hash, question)
		if err != nil {
			return err
		}
		answer, sources = out.Answer, out.Sources
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, answer)
	if len(sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, defaultTheme.hintStyle().Render("Sources: "+strings.Join(sources, ", ")))
	}
	return nil
}
