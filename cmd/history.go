package cmd

import (
	"fmt"

	"github.com/DachengChen/querybot/conversation"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context(), appCfg)
		if err != nil {
			return err
		}
		defer b.Close()

		e, err := newEngine(cmd.Context(), b.client, conversation.ModeChat)
		if err != nil {
			return err
		}
		if err := openSession(cmd.Context(), e, args[0]); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		sess, _ := e.Current()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s (%s)", sess.Title, sess.Mode.Label())))
		fmt.Fprintln(out)
		msgs := e.Messages()
		if len(msgs) == 0 {
			fmt.Fprintln(out, idStyle.Render("no messages"))
		}
		for _, m := range msgs {
			printMessage(out, m, b.client.ResolveURL)
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
