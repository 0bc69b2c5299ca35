package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/dataporter/mysql-porter/pkg/catalog"
)

// Client is the data-access collaborator: catalog introspection, DDL
// capture, row streaming and target-side apply. All methods draw
// independent sessions from the pooled handle, so workers can run
// concurrently.
type Client struct {
	db *sql.DB
}

func NewClient(db *sql.DB) *Client {
	return &Client{db: db}
}

var _ catalog.Source = &Client{}

// ServerVersion reports the source server version string.
func (c *Client) ServerVersion() (string, error) {
	var version sql.NullString
	if err := c.db.QueryRow("SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return version.String, nil
}

func (c *Client) ListTables(schema string) ([]string, error) {
	return c.listTableLike(schema, "BASE TABLE")
}

func (c *Client) ListViews(schema string) ([]string, error) {
	return c.listTableLike(schema, "VIEW")
}

func (c *Client) listTableLike(schema, tableType string) ([]string, error) {
	rows, err := c.db.Query("SHOW FULL TABLES IN "+esc(schema))
	if err != nil {
		return nil, fmt.Errorf("could not list tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name, typ sql.NullString
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, fmt.Errorf("error scanning table name: %w", err)
		}
		if name.Valid && typ.String == tableType {
			names = append(names, name.String)
		}
	}
	return names, rows.Err()
}

func (c *Client) ListEvents(schema string) ([]string, error) {
	return c.listNames(
		"SELECT EVENT_NAME FROM information_schema.EVENTS WHERE EVENT_SCHEMA = ? ORDER BY EVENT_NAME", schema)
}

func (c *Client) ListRoutines(schema string) ([]string, error) {
	return c.listNames(
		"SELECT ROUTINE_NAME FROM information_schema.ROUTINES WHERE ROUTINE_SCHEMA = ? ORDER BY ROUTINE_NAME", schema)
}

func (c *Client) listNames(query, schema string) ([]string, error) {
	rows, err := c.db.Query(query, schema)
	if err != nil {
		return nil, fmt.Errorf("could not list objects in %s: %w", schema, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning object name: %w", err)
		}
		if name.Valid {
			names = append(names, name.String)
		}
	}
	return names, rows.Err()
}

// ShowCreate captures the raw DDL of one object. The create statement
// is extracted by column name because SHOW CREATE result shapes differ
// per object kind.
func (c *Client) ShowCreate(kind catalog.Kind, schema, name string) (string, error) {
	switch kind {
	case catalog.KindSchema:
		return c.showCreate("SHOW CREATE DATABASE " + esc(schema))
	case catalog.KindTable:
		return c.showCreate("SHOW CREATE TABLE " + esc(schema) + "." + esc(name))
	case catalog.KindView:
		return c.showCreate("SHOW CREATE VIEW " + esc(schema) + "." + esc(name))
	case catalog.KindEvent:
		return c.showCreate("SHOW CREATE EVENT " + esc(schema) + "." + esc(name))
	case catalog.KindRoutine:
		// procedures and functions share the routine namespace listing
		ddl, err := c.showCreate("SHOW CREATE PROCEDURE " + esc(schema) + "." + esc(name))
		if err != nil {
			return c.showCreate("SHOW CREATE FUNCTION " + esc(schema) + "." + esc(name))
		}
		return ddl, nil
	}
	return "", fmt.Errorf("unknown object kind: %s", kind)
}

func (c *Client) showCreate(query string) (string, error) {
	rows, err := c.db.Query(query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no result for %q", query)
	}
	vals := make([]any, len(cols))
	for i := range vals {
		vals[i] = new(sql.NullString)
	}
	if err := rows.Scan(vals...); err != nil {
		return "", err
	}
	for i, col := range cols {
		if strings.HasPrefix(col, "Create ") {
			return vals[i].(*sql.NullString).String, nil
		}
	}
	return "", fmt.Errorf("no create statement column in result of %q", query)
}

// TableInfo returns the row estimate and ordering key used for chunk
// planning. The ordering key is the table's single-column integer
// primary key; tables without one are streamed as a single chunk.
func (c *Client) TableInfo(schema, name string) (catalog.TableInfo, error) {
	info := catalog.TableInfo{Schema: schema, Name: name}

	var estimate sql.NullInt64
	err := c.db.QueryRow(
		"SELECT TABLE_ROWS FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?",
		schema, name).Scan(&estimate)
	if err != nil {
		return info, fmt.Errorf("could not estimate rows of %s.%s: %w", schema, name, err)
	}
	info.RowEstimate = estimate.Int64

	rows, err := c.db.Query(
		`SELECT COLUMN_NAME, DATA_TYPE FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND COLUMN_KEY = 'PRI'
		 ORDER BY ORDINAL_POSITION`, schema, name)
	if err != nil {
		return info, fmt.Errorf("could not inspect primary key of %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var pkCols []string
	var firstType string
	for rows.Next() {
		var col, typ string
		if err := rows.Scan(&col, &typ); err != nil {
			return info, err
		}
		if len(pkCols) == 0 {
			firstType = typ
		}
		pkCols = append(pkCols, col)
	}
	if err := rows.Err(); err != nil {
		return info, err
	}
	if len(pkCols) == 1 && integerType(firstType) {
		info.OrderingKey = pkCols[0]
	}
	return info, nil
}

func integerType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return true
	}
	return false
}

// StreamRows writes one chunk's rows to w in TSV encoding and returns
// the number of rows written. OrderingKey-less chunks stream the whole
// table. Open chunks get no upper bound: the planner's End comes from
// information_schema's row estimate, which InnoDB keeps only
// approximately, and a bounded LIMIT would silently drop every row
// past it.
func (c *Client) StreamRows(ctx context.Context, chunk catalog.Chunk, w io.Writer) (int64, error) {
	query := "SELECT * FROM " + esc(chunk.Schema) + "." + esc(chunk.Table)
	var args []any
	if chunk.OrderingKey != "" {
		query += " ORDER BY " + esc(chunk.OrderingKey)
		if chunk.Open {
			// the documented MySQL idiom for offset-to-end
			query += " LIMIT ?, 18446744073709551615"
			args = append(args, chunk.Start)
		} else {
			query += " LIMIT ?, ?"
			args = append(args, chunk.Start, chunk.Rows())
		}
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("could not stream rows of %s.%s: %w", chunk.Schema, chunk.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	raw := make([]sql.RawBytes, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}

	var count int64
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return count, err
		}
		if err := WriteRecord(w, raw); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}

const insertBatchRows = 500

// LoadRows reads TSV records from r and inserts them into the target
// table in batches. The whole chunk runs in one transaction so a
// failed or interrupted chunk leaves nothing behind and can be retried
// from the start without duplicating rows.
func (c *Client) LoadRows(ctx context.Context, schema, table string, r io.Reader) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction on %s.%s: %w", schema, table, err)
	}

	scanner := NewRecordScanner(r)

	var (
		count   int64
		batch   []string
		colsPer int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stmt := "INSERT INTO " + esc(schema) + "." + esc(table) + " VALUES " + strings.Join(batch, ",")
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not insert rows into %s.%s: %w", schema, table, err)
		}
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		fields := scanner.Record()
		if colsPer == 0 {
			colsPer = len(fields)
		} else if len(fields) != colsPer {
			_ = tx.Rollback()
			return count, fmt.Errorf("inconsistent column count in %s.%s data: %d vs %d", schema, table, len(fields), colsPer)
		}
		batch = append(batch, valuesTuple(fields))
		count++
		if len(batch) >= insertBatchRows {
			if err := flush(); err != nil {
				_ = tx.Rollback()
				return count, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		_ = tx.Rollback()
		return count, err
	}
	if err := flush(); err != nil {
		_ = tx.Rollback()
		return count, err
	}
	if err := tx.Commit(); err != nil {
		return count, fmt.Errorf("could not commit rows into %s.%s: %w", schema, table, err)
	}
	return count, nil
}

// ApplyDDL executes one DDL statement against the target, switching to
// the object's schema first when one is given.
func (c *Client) ApplyDDL(ctx context.Context, schema, ddl string) error {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("could not get target session: %w", err)
	}
	defer conn.Close()

	if schema != "" {
		if _, err := conn.ExecContext(ctx, "USE "+esc(schema)); err != nil {
			return fmt.Errorf("could not select schema %s: %w", schema, err)
		}
	}
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return err
	}
	return nil
}

func esc(in string) string {
	return "`" + strings.ReplaceAll(in, "`", "``") + "`"
}
