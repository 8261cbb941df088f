package cmd

import (
	"errors"
	"fmt"

	"github.com/DachengChen/querybot/conversation"
	"github.com/spf13/cobra"
)

var clearConfirmed bool

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions, most recent first",
	Args:  cobra.NoArgs,
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
		printSessions(cmd.OutOrStdout(), e.Sessions())
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every session and its messages",
	Args:  cobra.NoArgs,
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
		n := len(e.Sessions())
		u, err := e.ClearAll(clearConfirmed)
		if errors.Is(err, conversation.ErrNotConfirmed) {
			return fmt.Errorf("refusing to delete %d session(s) without --yes", n)
		}
		if err != nil {
			return err
		}
		if u = e.Run(cmd.Context(), u); u.Notice != "" {
			return errors.New(u.Notice)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d session(s)\n", n)
		return nil
	},
}

func init() {
	sessionsClearCmd.Flags().BoolVarP(&clearConfirmed, "yes", "y", false, "confirm deleting all history")
	sessionsCmd.AddCommand(sessionsClearCmd)
	rootCmd.AddCommand(sessionsCmd)
}
