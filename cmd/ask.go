package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DachengChen/querybot/conversation"
	"github.com/spf13/cobra"
)

var errRequestFailed = errors.New("request failed")

var (
	askSession  string
	analyzeFile string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a SQL question and print the answer, query and rows",
	Long: `Ask a question in SQL Chat mode.

Without --session a new session titled after the question is created.`,
	Args: cobra.MinimumNArgs(1),
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
		if askSession != "" {
			if err := openSession(cmd.Context(), e, askSession); err != nil {
				return err
			}
		}
		return sendAndPrint(cmd.Context(), cmd.OutOrStdout(), b, e, strings.Join(args, " "))
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze --file <csv> <question>",
	Short: "Upload a CSV and ask a data analysis question about it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(analyzeFile)
		if err != nil {
			return err
		}

		b, err := openBackend(cmd.Context(), appCfg)
		if err != nil {
			f.Close()
			return err
		}
		defer b.Close()

		e, err := newEngine(cmd.Context(), b.client, conversation.ModeEDA)
		if err != nil {
			f.Close()
			return err
		}
		u, err := e.Upload(filepath.Base(analyzeFile), f)
		if err != nil {
			return err
		}
		if u = e.Run(cmd.Context(), u); u.Notice != "" {
			return errors.New(u.Notice)
		}

		out := cmd.OutOrStdout()
		file := e.FileData()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📄 %s: %s rows, %d columns",
			file.DisplayName(), file.RowCount, len(file.Columns))))
		fmt.Fprintln(out)
		return sendAndPrint(cmd.Context(), out, b, e, strings.Join(args, " "))
	},
}

// sendAndPrint sends text in the engine's mode and prints the reply.
func sendAndPrint(ctx context.Context, out io.Writer, b *backend, e *conversation.Engine, text string) error {
	u, err := e.Send(text)
	if err != nil {
		return err
	}
	u = e.Run(ctx, u)
	if !u.InputConsumed {
		if u.Notice != "" {
			return errors.New(u.Notice)
		}
		return errRequestFailed
	}

	msgs := e.Messages()
	reply := msgs[len(msgs)-1]
	printMessage(out, reply, b.client.ResolveURL)
	if sess, ok := e.Current(); ok {
		fmt.Fprintln(out, idStyle.Render("session "+sess.ID))
	}
	if reply.Failed() {
		return errRequestFailed
	}
	return nil
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "continue an existing chat session")
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "CSV file to analyze")
	analyzeCmd.MarkFlagRequired("file") //nolint:errcheck
	rootCmd.AddCommand(askCmd, analyzeCmd)
}
