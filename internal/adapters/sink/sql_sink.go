package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/reedan88/Isaias/internal/domain"
	"github.com/reedan88/Isaias/internal/ports"
)

const (
	DefaultTable     = "measurements"
	DefaultBatchSize = 5000
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ErrTableName is returned for a table name that is not a plain identifier.
var ErrTableName = errors.New("invalid table name")

// SQLSink stores an assembled dataset in long form: one row per timestamp and
// variable. Re-writing the same dataset is idempotent.
type SQLSink struct {
	db        *sql.DB
	driver    string
	table     string
	batchSize int
}

func NewSQLSink(db *sql.DB, driver, table string, batchSize int) (*SQLSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrTableName, table)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SQLSink{db: db, driver: driver, table: table, batchSize: batchSize}, nil
}

func (s *SQLSink) Name() string { return "sql:" + s.driver }

// EnsureTable creates the measurement table when it does not exist.
func (s *SQLSink) EnsureTable(ctx context.Context) error {
	ts, val := "TIMESTAMPTZ", "DOUBLE PRECISION"
	if s.driver == "sqlite3" {
		ts, val = "TIMESTAMP", "REAL"
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	source TEXT NOT NULL,
	refdes TEXT NOT NULL,
	ts %s NOT NULL,
	variable TEXT NOT NULL,
	value %s NOT NULL,
	PRIMARY KEY (source, ts, variable)
)`, s.table, ts, val)
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

type measurement struct {
	ts       time.Time
	variable string
	value    float64
}

// WriteDataset inserts every finite value of every time-indexed variable and
// returns the number of rows the database reports as inserted.
func (s *SQLSink) WriteDataset(ctx context.Context, source string, ds *domain.Dataset) (int, error) {
	rows := flatten(ds)
	if len(rows) == 0 {
		return 0, nil
	}
	refdes := ""
	if ref, err := domain.RefDesFromID(ds.Attrs[domain.AttrID]); err == nil {
		refdes = ref.String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	written := 0
	for start := 0; start < len(rows); start += s.batchSize {
		end := start + s.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		query, args := s.insert(source, refdes, rows[start:end])
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += int(n)
		} else {
			written += end - start
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

func (s *SQLSink) insert(source, refdes string, rows []measurement) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.table)
	b.WriteString(" (source, refdes, ts, variable, value) VALUES ")

	args := make([]any, 0, len(rows)*5)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 0; c < 5; c++ {
			if c > 0 {
				b.WriteString(",")
			}
			b.WriteString(s.placeholder(len(args) + c + 1))
		}
		b.WriteString(")")
		args = append(args, source, refdes, r.ts, r.variable, r.value)
	}
	b.WriteString(" ON CONFLICT (source, ts, variable) DO NOTHING")
	return b.String(), args
}

func (s *SQLSink) placeholder(n int) string {
	if s.driver == "sqlite3" {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// flatten walks the dataset time-major, variables in dataset order.
func flatten(ds *domain.Dataset) []measurement {
	vars := make([]*domain.Variable, 0)
	for _, v := range ds.Vars() {
		if v.Dim == ds.Dim && v.Name != domain.VarTime {
			vars = append(vars, v)
		}
	}
	out := make([]measurement, 0, len(ds.Time)*len(vars))
	for i, ts := range ds.Time {
		if ts.IsZero() {
			continue
		}
		for _, v := range vars {
			if i >= len(v.Values) {
				continue
			}
			x := v.Values[i]
			if math.IsNaN(x) || math.IsInf(x, 0) {
				continue
			}
			out = append(out, measurement{ts: ts, variable: v.Name, value: x})
		}
	}
	return out
}

var _ ports.Sink = (*SQLSink)(nil)
