package substrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite stores each collection as a table in one embedded database.
//
// Table layout:
//
//	seq INTEGER PRIMARY KEY AUTOINCREMENT  -- storage order
//	id  TEXT UNIQUE                        -- record ObjectID hex
//	form TEXT                              -- form ObjectID hex
//	doc TEXT                               -- JSON encoded values (see storedValue)
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

// Ping checks that the database file is still reachable.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Backend() string { return "sqlite" }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLite) Open(ctx context.Context, name string) (Collection, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	stmt := `CREATE TABLE IF NOT EXISTS ` + quoteIdent(name) + ` (
		seq  INTEGER PRIMARY KEY AUTOINCREMENT,
		id   TEXT NOT NULL UNIQUE,
		form TEXT NOT NULL,
		doc  TEXT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create table %s: %w", name, err)
	}
	return &sqliteCollection{db: s.db, name: name, table: quoteIdent(name)}, nil
}

func (s *SQLite) Drop(ctx context.Context, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(name)); err != nil {
		return fmt.Errorf("drop table %s: %w", name, err)
	}
	return nil
}

type sqliteCollection struct {
	db    *sql.DB
	name  string
	table string
}

func (c *sqliteCollection) Name() string { return c.name }

func (c *sqliteCollection) Insert(ctx context.Context, doc Document) error {
	body, err := encodeJSONValues(doc.Values)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO `+c.table+` (id, form, doc) VALUES (?, ?, ?)`,
		doc.ID.Hex(), doc.FormID.Hex(), body)
	if err != nil {
		if isConstraintErr(err) {
			return &apperr.DuplicateError{Key: "_id"}
		}
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var id, form, body string
	if err := row.Scan(&id, &form, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, apperr.ErrNotFound
		}
		return Document{}, err
	}
	var (
		d   Document
		err error
	)
	if d.ID, err = primitive.ObjectIDFromHex(id); err != nil {
		return Document{}, fmt.Errorf("decode id: %w", err)
	}
	if d.FormID, err = primitive.ObjectIDFromHex(form); err != nil {
		return Document{}, fmt.Errorf("decode form: %w", err)
	}
	if d.Values, err = decodeJSONValues(body); err != nil {
		return Document{}, err
	}
	return d, nil
}

func (c *sqliteCollection) Get(ctx context.Context, id primitive.ObjectID) (Document, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, form, doc FROM `+c.table+` WHERE id = ?`, id.Hex())
	return scanDocument(row)
}

func (c *sqliteCollection) Find(ctx context.Context) (Cursor, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, form, doc FROM `+c.table+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return &sqliteCursor{rows: rows}, nil
}

func (c *sqliteCollection) Set(ctx context.Context, id primitive.ObjectID, values map[string]models.Value) (Document, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := scanDocument(tx.QueryRowContext(ctx, `SELECT id, form, doc FROM `+c.table+` WHERE id = ?`, id.Hex()))
	if err != nil {
		return Document{}, err
	}
	for k, v := range values {
		d.Values[k] = v
	}
	body, err := encodeJSONValues(d.Values)
	if err != nil {
		return Document{}, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE `+c.table+` SET doc = ? WHERE id = ?`, body, id.Hex()); err != nil {
		return Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return Document{}, err
	}
	return d, nil
}

func (c *sqliteCollection) Delete(ctx context.Context, id primitive.ObjectID) (Document, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, err
	}
	defer func() { _ = tx.Rollback() }()

	d, err := scanDocument(tx.QueryRowContext(ctx, `SELECT id, form, doc FROM `+c.table+` WHERE id = ?`, id.Hex()))
	if err != nil {
		return Document{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+c.table+` WHERE id = ?`, id.Hex()); err != nil {
		return Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return Document{}, err
	}
	return d, nil
}

func (c *sqliteCollection) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(&n)
	return n, err
}

type sqliteCursor struct {
	rows *sql.Rows
	doc  Document
	err  error
}

func (s *sqliteCursor) Next(context.Context) bool {
	if s.err != nil || !s.rows.Next() {
		return false
	}
	s.doc, s.err = scanDocument(s.rows)
	return s.err == nil
}

func (s *sqliteCursor) Document() Document { return s.doc }

func (s *sqliteCursor) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Err()
}

func (s *sqliteCursor) Close(context.Context) error { return s.rows.Close() }

func isConstraintErr(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

// storedValue is the JSON form of a models.Value. The type tag keeps bytes
// distinguishable from strings after a round trip.
type storedValue struct {
	T string   `json:"t"`
	S string   `json:"s,omitempty"`
	N *float64 `json:"n,omitempty"`
	B []byte   `json:"b,omitempty"`
}

func encodeJSONValues(values map[string]models.Value) (string, error) {
	out := make(map[string]storedValue, len(values))
	for k, v := range values {
		sv := storedValue{T: string(v.Type)}
		switch v.Type {
		case models.TypeNumber:
			n := v.Num
			sv.N = &n
		case models.TypeBytes:
			sv.B = v.Bytes
		default:
			sv.T = string(models.TypeString)
			sv.S = v.Str
		}
		out[k] = sv
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode values: %w", err)
	}
	return string(b), nil
}

func decodeJSONValues(body string) (map[string]models.Value, error) {
	var in map[string]storedValue
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return nil, fmt.Errorf("decode values: %w", err)
	}
	out := make(map[string]models.Value, len(in))
	for k, sv := range in {
		switch models.ValueType(sv.T) {
		case models.TypeNumber:
			var n float64
			if sv.N != nil {
				n = *sv.N
			}
			out[k] = models.NumberValue(n)
		case models.TypeBytes:
			out[k] = models.BytesValue(sv.B)
		default:
			out[k] = models.StringValue(sv.S)
		}
	}
	return out, nil
}
