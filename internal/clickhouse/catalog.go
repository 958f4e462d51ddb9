package clickhouse

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/jittakal/kafeventsink/pkg/table"
)

const columnsQuery = `SELECT table, name, type, default_kind
FROM system.columns
WHERE database = currentDatabase()
ORDER BY table, position
FORMAT JSONEachRow`

type columnRow struct {
	Table       string `json:"table"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	DefaultKind string `json:"default_kind"`
}

// Catalog reads table column contracts from system.columns.
type Catalog struct {
	client *Client
	logger *slog.Logger
}

// NewCatalog creates a catalog reader on top of client.
func NewCatalog(client *Client, logger *slog.Logger) *Catalog {
	return &Catalog{
		client: client,
		logger: logger.With("component", "catalog"),
	}
}

// FetchTables returns every table of the client's database with its columns
// in declaration order.
func (c *Catalog) FetchTables(ctx context.Context) ([]table.Table, error) {
	body, err := c.client.Query(ctx, columnsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query system.columns: %w", err)
	}
	defer body.Close()

	tables, err := decodeColumns(body, c.client.Database())
	if err != nil {
		return nil, err
	}

	for _, t := range tables {
		for _, col := range t.Columns {
			if col.Type == table.Unknown {
				c.logger.Warn("Unsupported column type",
					"table", t.Name,
					"column", col.Name,
					"type", col.Raw,
				)
			}
		}
	}
	return tables, nil
}

func decodeColumns(r io.Reader, database string) ([]table.Table, error) {
	var (
		tables []table.Table
		cur    *table.Table
	)

	dec := json.NewDecoder(r)
	for {
		var row columnRow
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode column row: %w", err)
		}

		if cur == nil || cur.Name != row.Table {
			tables = append(tables, table.Table{Name: row.Table, Database: database})
			cur = &tables[len(tables)-1]
		}
		cur.Columns = append(cur.Columns, table.ParseColumn(row.Name, row.Type, row.DefaultKind))
	}
	return tables, nil
}
