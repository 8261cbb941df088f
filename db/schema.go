// schema.go lists the tables and columns of a database in the same shape
// GET /api/schema returns, so the sidebar renders either source alike.
package db

import (
	"context"
	"fmt"

	"github.com/DachengChen/querybot/api"
	pgx "github.com/jackc/pgx/v5"
)

// columnRow is one row of the columns query.
type columnRow struct {
	Table    string
	Column   string
	DataType string
	MaxLen   *int32
}

const columnsQuery = `
	SELECT c.table_name::text, c.column_name::text, c.data_type::text,
	       c.character_maximum_length::int4
	FROM information_schema.columns c
	JOIN information_schema.tables t
	  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
	WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
	ORDER BY c.table_name, c.ordinal_position`

// Schema returns every base table of schema ("public" when empty) with
// its columns in declaration order.
func (d *DB) Schema(ctx context.Context, schema string) (*api.Schema, error) {
	if schema == "" {
		schema = "public"
	}
	rows, err := d.Pool.Query(ctx, columnsQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByPos[columnRow])
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	return groupColumns(cols), nil
}

// FetchSchema connects to dsn, reads its public schema and disconnects.
func FetchSchema(ctx context.Context, dsn string) (*api.Schema, error) {
	d, err := Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.Schema(ctx, "")
}

// groupColumns folds rows ordered by table into tables.
func groupColumns(rows []columnRow) *api.Schema {
	s := &api.Schema{Tables: []api.Table{}}
	for _, r := range rows {
		n := len(s.Tables)
		if n == 0 || s.Tables[n-1].Name != r.Table {
			s.Tables = append(s.Tables, api.Table{Name: r.Table})
			n++
		}
		s.Tables[n-1].Columns = append(s.Tables[n-1].Columns, api.Column{
			Name: r.Column,
			Type: columnType(r.DataType, r.MaxLen),
		})
	}
	return s
}

// columnType renders "character varying(50)" style types the way the
// backend reports them: upper case with the length.
func columnType(dataType string, maxLen *int32) string {
	t := upperType(dataType)
	if maxLen != nil && *maxLen > 0 {
		return fmt.Sprintf("%s(%d)", t, *maxLen)
	}
	return t
}

var typeAliases = map[string]string{
	"character varying":           "VARCHAR",
	"character":                   "CHAR",
	"integer":                     "INTEGER",
	"bigint":                      "BIGINT",
	"smallint":                    "SMALLINT",
	"double precision":            "DOUBLE PRECISION",
	"timestamp without time zone": "TIMESTAMP",
	"timestamp with time zone":    "TIMESTAMPTZ",
	"boolean":                     "BOOLEAN",
	"numeric":                     "NUMERIC",
	"text":                        "TEXT",
	"date":                        "DATE",
}

func upperType(dataType string) string {
	if alias, ok := typeAliases[dataType]; ok {
		return alias
	}
	out := []byte(dataType)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
