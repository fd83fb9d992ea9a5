package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"envelopes/internal/core"
	"envelopes/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteRepository)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) GetTxn(ctx context.Context, id string) (core.Transaction, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM transactions WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return core.DecodeTransaction([]byte(doc))
}

func (r *SQLiteRepository) ListTxns(ctx context.Context) ([]core.Transaction, error) {
	return r.queryTxns(ctx, `SELECT doc FROM transactions ORDER BY date, id`)
}

func (r *SQLiteRepository) ListTxnsByType(ctx context.Context, typ core.TxnType) ([]core.Transaction, error) {
	return r.queryTxns(ctx, `SELECT doc FROM transactions WHERE type = ? ORDER BY date, id`, string(typ))
}

func (r *SQLiteRepository) queryTxns(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t, err := core.DecodeTransaction([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) PutTxn(ctx context.Context, t core.Transaction) error {
	if err := putTxn(ctx, r.db, t); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite", "txn_id", t.Head().ID, "txn_type", t.Type())
	return nil
}

func putTxn(ctx context.Context, db execer, t core.Transaction) error {
	h := t.Head()
	if h.ID == "" {
		return core.ErrMissingTxnID
	}
	doc, err := core.EncodeTransaction(t)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	var group sql.NullString
	if f, ok := t.(core.Fill); ok {
		group = sql.NullString{String: f.TxnID, Valid: true}
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, date, fill_group, doc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			date = excluded.date,
			fill_group = excluded.fill_group,
			doc = excluded.doc,
			updated_at = CURRENT_TIMESTAMP`,
		h.ID, string(t.Type()), h.Date.String(), group, string(doc))
	if err != nil {
		return fmt.Errorf("put transaction %s: %w", h.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTxn(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListFillGroup(ctx context.Context, txnID string) ([]core.Fill, error) {
	txns, err := r.queryTxns(ctx, `SELECT doc FROM transactions WHERE fill_group = ? ORDER BY date, id`, txnID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Fill, 0, len(txns))
	for _, t := range txns {
		f, ok := t.(core.Fill)
		if !ok {
			return nil, fmt.Errorf("%w: %s in fill group is a %s", core.ErrMalformed, t.Head().ID, t.Type())
		}
		out = append(out, f)
	}
	return out, nil
}

// ReplaceFillGroup swaps the group in one database transaction.
func (r *SQLiteRepository) ReplaceFillGroup(ctx context.Context, txnID string, fills []core.Fill) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fill group: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE fill_group = ?`, txnID); err != nil {
		return fmt.Errorf("clear fill group: %w", err)
	}
	for _, f := range fills {
		if f.TxnID != txnID {
			return fmt.Errorf("fill %s belongs to group %q, not %q", f.ID, f.TxnID, txnID)
		}
		if err := putTxn(ctx, tx, f); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit fill group: %w", err)
	}

	slog.InfoContext(ctx, "Fill group replaced", "fill_group", txnID, "count", len(fills))
	return nil
}

func (r *SQLiteRepository) DeleteFillGroup(ctx context.Context, txnID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE fill_group = ?`, txnID)
	if err != nil {
		return 0, fmt.Errorf("delete fill group: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *SQLiteRepository) GetBucket(ctx context.Context, id string) (core.Bucket, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, type, target, interval, due, tags FROM buckets WHERE id = ?`, id)
	b, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bucket{}, fmt.Errorf("bucket %s: %w", id, store.ErrNotFound)
	}
	return b, err
}

func (r *SQLiteRepository) PutBucket(ctx context.Context, b core.Bucket) error {
	if err := b.Validate(); err != nil {
		return err
	}
	tags, err := json.Marshal(b.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if b.Tags == nil {
		tags = []byte("{}")
	}
	var due sql.NullString
	if b.Extra.Due != nil && !b.Extra.Due.IsZero() {
		due = sql.NullString{String: b.Extra.Due.String(), Valid: true}
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO buckets (id, name, type, target, interval, due, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			target = excluded.target,
			interval = excluded.interval,
			due = excluded.due,
			tags = excluded.tags`,
		b.ID, b.Name, string(b.Type), int64(b.Extra.Target), string(b.Extra.Interval), due, string(tags))
	if err != nil {
		return fmt.Errorf("put bucket %s: %w", b.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) ListBuckets(ctx context.Context) ([]core.Bucket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, type, target, interval, due, tags FROM buckets ORDER BY type, name`)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var out []core.Bucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBucket(s scanner) (core.Bucket, error) {
	var (
		b        core.Bucket
		typ      string
		target   int64
		interval string
		due      sql.NullString
		tags     string
	)
	if err := s.Scan(&b.ID, &b.Name, &typ, &target, &interval, &due, &tags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Bucket{}, err
		}
		return core.Bucket{}, fmt.Errorf("scan bucket: %w", err)
	}
	b.Type = core.BucketType(typ)
	b.Extra = core.EnvelopeExtra{Target: core.Pennies(target), Interval: core.Interval(interval)}
	if due.Valid && due.String != "" {
		d, err := core.ParseDate(due.String)
		if err != nil {
			return core.Bucket{}, fmt.Errorf("bucket %s due date: %w", b.ID, err)
		}
		b.Extra.Due = &d
	}
	if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
		return core.Bucket{}, fmt.Errorf("bucket %s tags: %w", b.ID, err)
	}
	if len(b.Tags) == 0 {
		b.Tags = nil
	}
	return b, nil
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s store.Snapshot) error {
	data, err := json.Marshal(s.Balances)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO balance_snapshots (taken_at, balances) VALUES (?, ?)`,
		s.TakenAt.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (store.Snapshot, error) {
	var takenAt, data string
	err := r.db.QueryRowContext(ctx,
		`SELECT taken_at, balances FROM balance_snapshots ORDER BY id DESC LIMIT 1`).Scan(&takenAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Snapshot{}, store.ErrNotFound
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	var s store.Snapshot
	if s.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
		return store.Snapshot{}, fmt.Errorf("snapshot time: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &s.Balances); err != nil {
		return store.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// PruneSnapshots keeps the newest keep snapshots.
func (r *SQLiteRepository) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM balance_snapshots
		WHERE id NOT IN (SELECT id FROM balance_snapshots ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
