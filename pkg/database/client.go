// Package database provides thin SQL helpers used by steps to seed and
// clean up backend data.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// Client runs statements against one database.
type Client struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens a database with the named driver and checks the connection.
func Open(ctx context.Context, driver, dsn string) (*Client, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	logger.Debug("database connected (%s)", driver)
	return New(db), nil
}

// OpenMySQL opens a MySQL connection.
func OpenMySQL(ctx context.Context, conn Connection) (*Client, error) {
	return Open(ctx, "mysql", conn.DSN())
}

// New wraps an existing handle.
func New(db *sql.DB) *Client {
	return &Client{db: db, now: time.Now}
}

// Close closes the underlying handle.
func (c *Client) Close() error {
	return c.db.Close()
}

// Query runs a query and returns every row as column → value. Byte slices
// are returned as strings.
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	logger.Debug("SQL: %s %v", query, args)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("SQL failed: %s: %v", query, err)
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Exec runs a statement and returns the number of affected rows.
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	logger.Debug("SQL: %s %v", query, args)
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Error("SQL failed: %s: %v", query, err)
		return 0, err
	}
	return res.RowsAffected()
}

// Update sets column to value on rows matching where.
func (c *Client) Update(ctx context.Context, table, column string, value interface{}, where string, whereArgs ...interface{}) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET %s = ?", table, column)
	if where != "" {
		query += " WHERE " + where
	}
	return c.Exec(ctx, query, append([]interface{}{value}, whereArgs...)...)
}

// Insert adds one row.
func (c *Client) Insert(ctx context.Context, table string, columns []string, values []interface{}) error {
	if len(columns) != len(values) {
		return fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)
	_, err := c.Exec(ctx, query, values...)
	return err
}

// Delete removes rows where column equals value.
func (c *Client) Delete(ctx context.Context, table, column string, value interface{}) (int64, error) {
	return c.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column), value)
}

// ColumnValue runs sel and returns key from the first row that has it, or
// nil when nothing matched.
func (c *Client) ColumnValue(ctx context.Context, sel Select, key string) (interface{}, error) {
	rows, err := c.Query(ctx, sel.SQL(), sel.Args...)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if v, ok := row[key]; ok {
			return v, nil
		}
	}
	return nil, nil
}

// UpdateTransactionEndDate moves the end date of a listing's transactions to
// two minutes from now (UTC) and returns the updated transactions.
func (c *Client) UpdateTransactionEndDate(ctx context.Context, listingID interface{}) ([]map[string]interface{}, error) {
	endDate := c.now().Add(2 * time.Minute).UTC().Format(DateTimeLayout)
	if _, err := c.Update(ctx, "transactions", "end_date", endDate, "listing_id = ?", listingID); err != nil {
		return nil, err
	}
	return c.Query(ctx, Select{Fields: "*", Table: "transactions", Where: "listing_id = ?", Args: []interface{}{listingID}}.SQL(), listingID)
}

// DateTimeLayout is the MySQL DATETIME text layout.
const DateTimeLayout = "2006-01-02 15:04:05"

// Select describes a single-table SELECT.
type Select struct {
	Fields  string // Defaults to *
	Table   string
	Where   string // May contain ? placeholders bound to Args
	Args    []interface{}
	OrderBy string
	Desc    bool
	Limit   int
}

// SQL renders the statement.
func (s Select) SQL() string {
	fields := s.Fields
	if fields == "" {
		fields = "*"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", fields, s.Table)
	if s.Where != "" {
		b.WriteString(" WHERE " + s.Where)
	}
	if s.OrderBy != "" {
		b.WriteString(" ORDER BY " + s.OrderBy)
		if s.Desc {
			b.WriteString(" DESC")
		}
	}
	if s.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	return b.String()
}
