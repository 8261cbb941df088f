package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var schemaDirect bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "List the tables and columns of the database",
	Long: `List the tables and columns of the database the backend queries.

With --direct the database at --db-uri (or schema.db_uri) is read
directly instead of asking the backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *appCfg
		if schemaDirect {
			cfg.Schema.Direct = true
		}

		b, err := openBackend(cmd.Context(), &cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		schema, err := schemaLoader(&cfg, b.client)(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(schema.Tables) == 0 {
			fmt.Fprintln(out, headerStyle.Render("No tables found"))
			return nil
		}
		for _, t := range schema.Tables {
			fmt.Fprintln(out, titleStyle.Render(t.Name))
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, c := range t.Columns {
				fmt.Fprintf(tw, "  %s\t%s\n", c.Name, dateStyle.Render(c.Type))
			}
			tw.Flush() //nolint:errcheck
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaDirect, "direct", false, "read the schema from the database with pgx")
	rootCmd.AddCommand(schemaCmd)
}
