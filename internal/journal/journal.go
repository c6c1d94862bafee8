// Package journal 把实时事件写入 SQLite，供 xts-stream 回看
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Entry 一条事件记录
type Entry struct {
	ID         int64
	Event      string
	Payload    string
	ReceivedAt time.Time
}

// Journal 事件日志
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open 打开（或创建）path 处的数据库；":memory:" 用于测试
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "journal: mkdir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "journal: open sqlite")
	}
	db.SetMaxOpenConns(1) // SQLite：单连接
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, now: time.Now}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  event TEXT NOT NULL,
  payload TEXT NOT NULL,
  received_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_events_event ON events(event, id DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "journal: migrate %q", stmt)
		}
	}
	return nil
}

// Close 关闭
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record 写入一条事件，返回记录 ID
func (j *Journal) Record(ctx context.Context, event, payload string) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
INSERT INTO events (event, payload, received_at)
VALUES (?,?,?)
`, event, payload, j.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, errors.Wrap(err, "journal: insert")
	}
	return res.LastInsertId()
}

// Recent 返回最近 n 条记录（新的在前）；n<=0 或过大时取 50
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	return j.query(ctx, `
SELECT id, event, payload, received_at FROM events
ORDER BY id DESC
LIMIT ?
`, limit(n))
}

// RecentByEvent 同 Recent，只取指定事件
func (j *Journal) RecentByEvent(ctx context.Context, event string, n int) ([]Entry, error) {
	return j.query(ctx, `
SELECT id, event, payload, received_at FROM events
WHERE event=?
ORDER BY id DESC
LIMIT ?
`, event, limit(n))
}

func limit(n int) int {
	if n <= 0 || n > 1000 {
		return 50
	}
	return n
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "journal: query")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			receivedAt string
		)
		if err := rows.Scan(&e.ID, &e.Event, &e.Payload, &receivedAt); err != nil {
			return nil, errors.Wrap(err, "journal: scan")
		}
		e.ReceivedAt, _ = time.Parse(time.RFC3339Nano, receivedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
