package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/service"
)

// ErrClosed индекс закрыт
var ErrClosed = errors.New("индекс закрыт")

const (
	defaultQueueSize = 65536
	commitEvery      = 500
	commitMaxWait    = 2 * time.Second
)

// SQLiteIndex вторичный индекс действий агентов и снимков мира.
// Запись асинхронная: вызовы не блокируют тик, при переполнении очереди записи отбрасываются.
type SQLiteIndex struct {
	db     *sql.DB
	logger *log.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropActionTotal   atomic.Uint64
	dropSnapshotTotal atomic.Uint64
}

var _ service.AuditSink = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqAction reqKind = iota + 1
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	action   service.AuditEntry
	snapshot snapshotRow
	flushed  chan struct{}
}

type snapshotRow struct {
	Tick   uint64
	Path   string
	Agents int
}

// SnapshotRecord строка индекса снимков
type SnapshotRecord struct {
	Tick   uint64
	Path   string
	Agents int
}

// QueueStats состояние очереди записи
type QueueStats struct {
	QueueDepth        int
	QueueCapacity     int
	DropActionTotal   uint64
	DropSnapshotTotal uint64
}

// OpenSQLite открывает или создает индекс по пути path
func OpenSQLite(path string, logger *log.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("пустой путь к базе индекса")
	}
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("настройка индекса: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("схема индекса: %w", err)
	}

	s := &SQLiteIndex{
		db:     db,
		logger: logger,
		ch:     make(chan req, defaultQueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	logger.Printf("[IndexDB] Индекс открыт: %s", path)
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			elapsed REAL NOT NULL,
			agent_id TEXT NOT NULL,
			action TEXT NOT NULL,
			target TEXT NOT NULL,
			code TEXT NOT NULL,
			message TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_agent_tick ON actions(agent_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			agents INTEGER NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close дописывает очередь и закрывает базу
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordAction ставит запись о действии в очередь
func (s *SQLiteIndex) RecordAction(entry service.AuditEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqAction, action: entry}:
	default:
		s.dropActionTotal.Add(1)
	}
}

// RecordSnapshot ставит в очередь запись о сохраненном снимке
func (s *SQLiteIndex) RecordSnapshot(tick uint64, path string, agents int) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRow{Tick: tick, Path: path, Agents: agents}}:
	default:
		s.dropSnapshotTotal.Add(1)
	}
}

// Flush ждет, пока все поставленные ранее записи будут зафиксированы
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, flushed: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Actions последние действия агента, новые первыми
func (s *SQLiteIndex) Actions(ctx context.Context, agentID entity.AgentID, limit int) ([]service.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, elapsed, agent_id, action, target, code, message, recorded_at
		FROM actions WHERE agent_id = ? ORDER BY id DESC LIMIT ?`,
		agentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("запрос действий агента %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []service.AuditEntry
	for rows.Next() {
		var (
			e               service.AuditEntry
			tick            int64
			id, action, rec string
		)
		if err := rows.Scan(&tick, &e.Elapsed, &id, &action, &e.Target, &e.Code, &e.Message, &rec); err != nil {
			return nil, err
		}
		e.Tick = uint64(tick)
		e.Action = service.ActionKind(action)
		if e.AgentID, err = entity.ParseAgentID(id); err != nil {
			return nil, err
		}
		if e.At, err = time.Parse(time.RFC3339Nano, rec); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Snapshots снимки, записанные не раньше тика fromTick, по возрастанию тика
func (s *SQLiteIndex) Snapshots(ctx context.Context, fromTick uint64) ([]SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, path, agents FROM snapshots WHERE tick >= ? ORDER BY tick`, int64(fromTick))
	if err != nil {
		return nil, fmt.Errorf("запрос снимков: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			r    SnapshotRecord
			tick int64
		)
		if err := rows.Scan(&tick, &r.Path, &r.Agents); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats состояние очереди записи
func (s *SQLiteIndex) Stats() QueueStats {
	return QueueStats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropActionTotal:   s.dropActionTotal.Load(),
		DropSnapshotTotal: s.dropSnapshotTotal.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAction, err := s.db.Prepare(`INSERT INTO actions(tick,elapsed,agent_id,action,target,code,message,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		s.logger.Printf("[IndexDB] Ошибка подготовки запроса действий: %v", err)
	} else {
		defer insertAction.Close()
	}
	insertSnapshot, err := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,agents) VALUES(?,?,?)`)
	if err != nil {
		s.logger.Printf("[IndexDB] Ошибка подготовки запроса снимков: %v", err)
	} else {
		defer insertSnapshot.Close()
	}

	var (
		tx         *sql.Tx
		opCount    int
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Printf("[IndexDB] Не удалось начать транзакцию: %v", err)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.logger.Printf("[IndexDB] Ошибка фиксации транзакции: %v", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		s.logger.Printf("[IndexDB] Ошибка записи, транзакция отменена: %v", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.flushed)
			continue
		}

		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAction:
			a := r.action
			if insertAction == nil {
				break
			}
			if _, err := tx.Stmt(insertAction).Exec(
				int64(a.Tick),
				a.Elapsed,
				a.AgentID.String(),
				string(a.Action),
				a.Target,
				a.Code,
				a.Message,
				a.At.UTC().Format(time.RFC3339Nano),
			); err != nil {
				rollback(err)
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				break
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(int64(sn.Tick), sn.Path, sn.Agents); err != nil {
				rollback(err)
				continue
			}
			opCount++
		}

		// единственное соединение занято транзакцией, поэтому в простое фиксируем сразу
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
