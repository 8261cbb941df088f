package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/DachengChen/querybot/conversation"
	"github.com/DachengChen/querybot/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
	exportPlots  string
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session transcript (md, json, yaml)",
	Long: `Export a session and its messages.

Examples:
  querybot export 12                       # querybot-session-12.md
  querybot export 12 --format json --out -  # JSON to stdout
  querybot export 12 --plots ./plots        # also download plot images`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

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
		sess, _ := e.Current()
		doc := export.NewDocument(sess, e.FileData(), e.Messages(), time.Now())

		if exportOut == "-" {
			if err := ex.Export(doc, cmd.OutOrStdout()); err != nil {
				return err
			}
		} else {
			path := exportOut
			if path == "" {
				path = export.Filename(doc, ex.Extension())
			}
			if err := writeFile(path, func(w io.Writer) error { return ex.Export(doc, w) }); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d message(s) to %s\n", len(doc.Messages), path)
		}
		if exportPlots == "" {
			return nil
		}
		return savePlots(cmd, b, e.Messages(), exportPlots)
	},
}

// savePlots downloads the plots of msgs into dir. The summary goes to
// stderr so it never mixes with a transcript written to stdout.
func savePlots(cmd *cobra.Command, b *backend, msgs []conversation.Message, dir string) error {
	refs := export.PlotRefs(msgs)
	if len(refs) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No plots to download")
		return nil
	}
	paths, err := export.SavePlots(cmd.Context(), b.client, refs, dir)
	if err != nil {
		return fmt.Errorf("plots: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved %d plot(s) to %s\n", len(paths), dir)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "output format: md, json, yaml")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file, - for stdout (default querybot-session-<id>.<ext>)")
	exportCmd.Flags().StringVar(&exportPlots, "plots", "", "directory to download the session's plot images into")
	rootCmd.AddCommand(exportCmd)
}
