// Package sqlitelog persists the durable oplog in a SQLite file. One file
// holds the logs of many workflows; each workflow's entries form an
// append-only sequence that an activation replays before going live, so a
// workflow picks up exactly where it left off across process restarts.
package sqlitelog

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/casualjim/loom/durable"
)

// Entry is one recorded durable call.
type Entry struct {
	Namespace string
	Name      string
	Kind      durable.FunctionKind
	Input     []byte
	Result    []byte
}

// DB is an open oplog database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the oplog database at the given path and runs
// migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS oplog_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		workflow_id TEXT NOT NULL,
		namespace TEXT NOT NULL,
		name TEXT NOT NULL,
		kind INTEGER NOT NULL,
		input BLOB NOT NULL,
		result BLOB NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_oplog_workflow_seq ON oplog_entries(workflow_id, seq);
	`
	_, err := d.db.Exec(schema)
	return err
}

// Log addresses the oplog of a single workflow.
func (d *DB) Log(workflowID string) *Log {
	return &Log{db: d.db, workflowID: workflowID}
}

// Log is the append-only record of one workflow.
type Log struct {
	db         *sql.DB
	workflowID string
}

// Len returns the number of recorded calls.
func (l *Log) Len() (int, error) {
	var n int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM oplog_entries WHERE workflow_id=?`, l.workflowID,
	).Scan(&n)
	return n, err
}

// Entries returns the recorded calls in execution order.
func (l *Log) Entries() ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT namespace, name, kind, input, result
		 FROM oplog_entries WHERE workflow_id=? ORDER BY seq ASC`, l.workflowID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind int
		if err := rows.Scan(&e.Namespace, &e.Name, &kind, &e.Input, &e.Result); err != nil {
			return nil, err
		}
		e.Kind = durable.FunctionKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *Log) append(e Entry) error {
	_, err := l.db.Exec(
		`INSERT INTO oplog_entries (workflow_id, namespace, name, kind, input, result)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.workflowID, e.Namespace, e.Name, int(e.Kind), e.Input, e.Result,
	)
	return err
}

func (l *Log) at(i int) (Entry, bool, error) {
	var e Entry
	var kind int
	err := l.db.QueryRow(
		`SELECT namespace, name, kind, input, result
		 FROM oplog_entries WHERE workflow_id=? ORDER BY seq ASC LIMIT 1 OFFSET ?`,
		l.workflowID, i,
	).Scan(&e.Namespace, &e.Name, &kind, &e.Input, &e.Result)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.Kind = durable.FunctionKind(kind)
	return e, true, nil
}

// Host is one activation of a workflow against its stored log. It is live
// once every entry recorded before the activation started has been replayed.
type Host struct {
	log      *Log
	replayTo int
	cursor   int
	suppress int
	err      error
}

// Attach creates a host over the workflow's log. Entries already stored are
// replayed before the host goes live.
func Attach(log *Log) (*Host, error) {
	n, err := log.Len()
	if err != nil {
		return nil, fmt.Errorf("sqlitelog: read log length: %w", err)
	}
	return &Host{log: log, replayTo: n}, nil
}

// Err returns the first append failure, if any. Persist has no error return
// in the host contract, so write failures surface here.
func (h *Host) Err() error {
	return h.err
}

// IsLive implements durable.Host.
func (h *Host) IsLive() bool {
	return h.cursor >= h.replayTo
}

// Begin implements durable.Host.
func (h *Host) Begin(namespace, name string, kind durable.FunctionKind) durable.Function {
	return &function{host: h, namespace: namespace, name: name, kind: kind}
}

// WithPersistenceLevel implements durable.Host.
func (h *Host) WithPersistenceLevel(level durable.PersistenceLevel, fn func()) {
	if level == durable.PersistNothing {
		h.suppress++
		defer func() { h.suppress-- }()
	}
	fn()
}

type function struct {
	host      *Host
	namespace string
	name      string
	kind      durable.FunctionKind
}

func (f *function) Persist(input, result []byte) {
	if f.host.suppress > 0 {
		return
	}
	err := f.host.log.append(Entry{
		Namespace: f.namespace,
		Name:      f.name,
		Kind:      f.kind,
		Input:     input,
		Result:    result,
	})
	if err != nil && f.host.err == nil {
		f.host.err = fmt.Errorf("sqlitelog: append %s::%s: %w", f.namespace, f.name, err)
	}
}

func (f *function) Replay() ([]byte, error) {
	if f.host.IsLive() {
		return nil, errors.New("sqlitelog: replay requested in live mode")
	}
	e, ok, err := f.host.log.at(f.host.cursor)
	if err != nil {
		return nil, fmt.Errorf("sqlitelog: read entry %d: %w", f.host.cursor, err)
	}
	if !ok {
		return nil, errors.New("sqlitelog: oplog exhausted")
	}
	if e.Namespace != f.namespace || e.Name != f.name || e.Kind != f.kind {
		return nil, fmt.Errorf("sqlitelog: replay mismatch at %d: recorded %s::%s (%s), requested %s::%s (%s)",
			f.host.cursor, e.Namespace, e.Name, e.Kind, f.namespace, f.name, f.kind)
	}
	f.host.cursor++
	return e.Result, nil
}
