// Package store persists world events to sqlite off the tick path. The
// engine hands events to a bounded channel and a single writer batches
// them into WAL-mode sqlite; when the channel is full events are shed
// rather than stalling the tick.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"lukechampine.com/blake3"

	"agentarena/pkg/metrics"
	"agentarena/pkg/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT,
	event_type TEXT,
	agent_id TEXT,
	target_agent_id TEXT,
	payload BLOB,
	ts INTEGER
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);

CREATE TABLE IF NOT EXISTS store_meta (key TEXT PRIMARY KEY, value TEXT);
`

type Config struct {
	Path      string
	FlushMs   int64
	BatchSize int
	Buffer    int
}

type Store struct {
	db        *sql.DB
	roomID    string
	ch        chan *wire.Message
	flushMs   int64
	batchSize int
	infolog   func(format string, v ...any)
	errlog    func(format string, v ...any)

	mu        sync.Mutex // guards chainHead between the writer and status reads
	chainHead []byte
}

func Open(cfg Config, roomID string, infolog, errlog func(format string, v ...any)) (*Store, error) {
	if cfg.FlushMs <= 0 {
		cfg.FlushMs = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 4096
	}

	db, err := sql.Open(driverName, dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Path, err)
	}
	db.Exec("PRAGMA journal_mode=WAL;")
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}

	s := &Store{
		db:        db,
		roomID:    roomID,
		ch:        make(chan *wire.Message, cfg.Buffer),
		flushMs:   cfg.FlushMs,
		batchSize: cfg.BatchSize,
		infolog:   infolog,
		errlog:    errlog,
	}
	s.loadChainHead()
	return s, nil
}

func (s *Store) loadChainHead() {
	var headHex string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key='chain_head'").Scan(&headHex)
	if err != nil {
		return
	}
	if b, err := hex.DecodeString(headHex); err == nil {
		s.chainHead = b
	}
}

// Record queues one event for persistence. Position churn stays out of
// the log; everything else is shed only when the writer falls behind.
func (s *Store) Record(msg *wire.Message) {
	if msg == nil || msg.Type == wire.TypePosition {
		return
	}
	select {
	case s.ch <- msg:
	default:
		metrics.StoreDropped.Inc()
	}
}

// Run owns the sqlite writer until ctx is cancelled, then drains what
// is left in the channel and flushes one final batch.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(s.flushMs) * time.Millisecond)
	defer ticker.Stop()

	batch := make([]*wire.Message, 0, s.batchSize)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg := <-s.ch:
					batch = append(batch, msg)
					continue
				default:
				}
				break
			}
			s.flush(batch)
			return ctx.Err()
		case msg := <-s.ch:
			batch = append(batch, msg)
			if len(batch) >= s.batchSize {
				s.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flush(batch []*wire.Message) {
	if len(batch) == 0 {
		return
	}
	type row struct {
		msg     *wire.Message
		payload []byte
	}
	rows := make([]row, 0, len(batch))
	for _, msg := range batch {
		data, err := json.Marshal(msg)
		if err != nil {
			s.errlog("store: marshal %s: %v", msg.Type, err)
			continue
		}
		rows = append(rows, row{msg: msg, payload: data})
	}
	if len(rows) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		s.errlog("store: begin: %v", err)
		metrics.StoreDropped.Add(float64(len(rows)))
		return
	}
	for _, r := range rows {
		_, err := tx.Exec(
			"INSERT INTO events (room_id, event_type, agent_id, target_agent_id, payload, ts) VALUES (?, ?, ?, ?, ?, ?)",
			s.roomID, string(r.msg.Type), r.msg.AgentID, r.msg.TargetID, r.payload, r.msg.Timestamp,
		)
		if err != nil {
			s.errlog("store: insert %s: %v", r.msg.Type, err)
		}
	}

	// Each batch extends a blake3 chain over the payload bytes so a
	// tampered or truncated log no longer matches the recorded head.
	s.mu.Lock()
	prev := s.chainHead
	s.mu.Unlock()
	h := blake3.New(32, nil)
	h.Write(prev)
	for _, r := range rows {
		h.Write(r.payload)
	}
	head := h.Sum(nil)
	tx.Exec(
		"INSERT INTO store_meta (key, value) VALUES ('chain_head', ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
		hex.EncodeToString(head),
	)

	if err := tx.Commit(); err != nil {
		s.errlog("store: commit %d events: %v", len(rows), err)
		metrics.StoreDropped.Add(float64(len(rows)))
		return
	}
	s.mu.Lock()
	s.chainHead = head
	s.mu.Unlock()
}

// Count reports how many events have been persisted so far.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}

// ChainHead returns the hex digest covering every flushed batch.
func (s *Store) ChainHead() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return hex.EncodeToString(s.chainHead)
}

func (s *Store) Close() error {
	return s.db.Close()
}
