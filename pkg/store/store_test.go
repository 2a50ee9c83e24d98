package store

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	"agentarena/pkg/wire"
)

func openTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "events.db")
	}
	s, err := Open(cfg, "room-store", t.Logf, t.Logf)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func chatMsg(agentID, text string, ts int64) *wire.Message {
	return &wire.Message{Type: wire.TypeChat, AgentID: agentID, Text: text, Timestamp: ts}
}

// drainAndFlush runs the writer against an already-cancelled context so it
// drains the channel and flushes everything synchronously.
func drainAndFlush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestOpenAppliesDefaults(t *testing.T) {
	s := openTestStore(t, Config{})

	require.EqualValues(t, 1000, s.flushMs)
	require.Equal(t, 256, s.batchSize)
	require.Equal(t, 4096, cap(s.ch))

	n, err := s.Count()
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, s.ChainHead())
}

func TestRunFlushesQueuedEventsOnCancel(t *testing.T) {
	s := openTestStore(t, Config{})

	whisper := &wire.Message{
		Type:      wire.TypeWhisper,
		AgentID:   "scout",
		TargetID:  "ranger",
		Text:      "meet at the north wall",
		Timestamp: 1700000000100,
	}
	chat := chatMsg("ranger", "on my way", 1700000000200)

	s.Record(nil)
	s.Record(&wire.Message{Type: wire.TypePosition, AgentID: "scout", X: wire.Float(5)})
	s.Record(whisper)
	s.Record(chat)

	drainAndFlush(t, s)

	n, err := s.Count()
	require.NoError(t, err)
	require.EqualValues(t, 2, n, "position churn and nil events must not be persisted")

	// The chain head covers exactly the flushed payload bytes in arrival order.
	h := blake3.New(32, nil)
	for _, msg := range []*wire.Message{whisper, chat} {
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		h.Write(data)
	}
	require.Equal(t, hex.EncodeToString(h.Sum(nil)), s.ChainHead())

	var eventType, agentID, targetID string
	var ts int64
	err = s.db.QueryRow(
		"SELECT event_type, agent_id, target_agent_id, ts FROM events WHERE event_type='whisper'",
	).Scan(&eventType, &agentID, &targetID, &ts)
	require.NoError(t, err)
	require.Equal(t, "whisper", eventType)
	require.Equal(t, "scout", agentID)
	require.Equal(t, "ranger", targetID)
	require.EqualValues(t, 1700000000100, ts)
}

func TestWriterFlushesFullBatchesImmediately(t *testing.T) {
	// Ticker parked an hour out so only the batch-size path can flush
	// before the final drain.
	s := openTestStore(t, Config{BatchSize: 3, FlushMs: 3600000})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for i := int64(0); i < 3; i++ {
		s.Record(chatMsg("bard", "verse", 1000+i))
	}
	require.Eventually(t, func() bool {
		n, err := s.Count()
		return err == nil && n == 3
	}, 3*time.Second, 10*time.Millisecond, "full batch should flush without waiting for the ticker")
	firstHead := s.ChainHead()
	require.NotEmpty(t, firstHead)

	// Two more events stay below the batch size and are held until the
	// writer drains on shutdown.
	s.Record(chatMsg("bard", "chorus", 2000))
	s.Record(chatMsg("bard", "coda", 2001))

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("writer did not stop after cancel")
	}

	n, err := s.Count()
	require.NoError(t, err)
	require.EqualValues(t, 5, n)
	require.NotEqual(t, firstHead, s.ChainHead(), "second flush must extend the chain")
}

func TestWriterFlushesPartialBatchOnTicker(t *testing.T) {
	s := openTestStore(t, Config{BatchSize: 100, FlushMs: 20})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Record(chatMsg("monk", "patience", 100))
	s.Record(chatMsg("monk", "stillness", 101))

	require.Eventually(t, func() bool {
		n, err := s.Count()
		return err == nil && n == 2
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("writer did not stop after cancel")
	}
}

func TestRecordShedsWhenBufferFull(t *testing.T) {
	s := openTestStore(t, Config{Buffer: 2})

	// No writer running, so everything past the buffer is shed. The
	// calls must return immediately rather than backpressuring a tick.
	for i := int64(0); i < 5; i++ {
		s.Record(chatMsg("crier", "hear ye", i))
	}

	drainAndFlush(t, s)

	n, err := s.Count()
	require.NoError(t, err)
	require.EqualValues(t, 2, n, "only the buffered events survive a stalled writer")
}

func TestChainHeadSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := Open(Config{Path: path}, "room-store", t.Logf, t.Logf)
	require.NoError(t, err)
	s.Record(chatMsg("keeper", "first entry", 10))
	s.Record(chatMsg("keeper", "second entry", 11))
	drainAndFlush(t, s)
	head := s.ChainHead()
	require.NotEmpty(t, head)
	require.NoError(t, s.Close())

	reopened, err := Open(Config{Path: path}, "room-store", t.Logf, t.Logf)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, head, reopened.ChainHead(), "head must be reloaded from store_meta")
	n, err := reopened.Count()
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	reopened.Record(chatMsg("keeper", "third entry", 12))
	drainAndFlush(t, reopened)
	require.NotEqual(t, head, reopened.ChainHead())
}

func TestLoadOrCreateIdentity(t *testing.T) {
	dir := t.TempDir()

	id, err := LoadOrCreateIdentity(dir, "Proving Grounds")
	require.NoError(t, err)
	require.Len(t, id.RoomID, 64)
	require.Equal(t, "Proving Grounds", id.Name)
	require.Positive(t, id.CreatedAt)

	again, err := LoadOrCreateIdentity(dir, "Renamed Later")
	require.NoError(t, err)
	require.Equal(t, id.RoomID, again.RoomID, "identity must be stable across restarts")
	require.Equal(t, id.CreatedAt, again.CreatedAt)

	corrupt := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(corrupt, "identity.json"), []byte("{nope"), 0o644))
	_, err = LoadOrCreateIdentity(corrupt, "Broken")
	require.Error(t, err)
}
