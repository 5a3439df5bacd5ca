package indexdb

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentient-cities/backend/internal/core/domain/entity"
	"sentient-cities/backend/internal/core/domain/service"
	"sentient-cities/backend/internal/physics/physicstest"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func openTemp(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "index.sqlite")
	idx, err := OpenSQLite(path, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func TestSQLiteIndex_RecordAndQueryActions(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)

	for i := 0; i < 5; i++ {
		idx.RecordAction(service.AuditEntry{
			Tick:    uint64(i),
			Elapsed: float64(i) / 2,
			AgentID: entity.AliceID,
			Action:  service.ActionSleep,
			Code:    entity.CodeOK,
			Message: "ok",
			At:      at,
		})
	}
	idx.RecordAction(service.AuditEntry{Tick: 9, AgentID: entity.BobID, Action: service.ActionDrink, Code: entity.CodeNotPermitted, At: at})
	require.NoError(t, idx.Flush(ctx))

	got, err := idx.Actions(ctx, entity.AliceID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(4), got[0].Tick, "новые первыми")
	assert.Equal(t, uint64(2), got[2].Tick)
	assert.Equal(t, 2.0, got[0].Elapsed)
	assert.Equal(t, service.ActionSleep, got[0].Action)
	assert.True(t, at.Equal(got[0].At))

	got, err = idx.Actions(ctx, entity.BobID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.CodeNotPermitted, got[0].Code)

	got, err = idx.Actions(ctx, entity.NewAgentID(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteIndex_Snapshots(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	idx.RecordSnapshot(100, "/data/100.snap.zst", 2)
	idx.RecordSnapshot(200, "/data/200.snap.zst", 3)
	idx.RecordSnapshot(200, "/data/200b.snap.zst", 4)
	require.NoError(t, idx.Flush(ctx))

	got, err := idx.Snapshots(ctx, 150)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SnapshotRecord{Tick: 200, Path: "/data/200b.snap.zst", Agents: 4}, got[0])

	got, err = idx.Snapshots(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteIndex_PersistsAcrossReopen(t *testing.T) {
	idx, path := openTemp(t)
	idx.RecordAction(service.AuditEntry{Tick: 1, AgentID: entity.AliceID, Action: service.ActionEat, At: time.Now()})
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close(), "повторное закрытие безопасно")

	idx.RecordAction(service.AuditEntry{Tick: 2, AgentID: entity.AliceID})
	assert.ErrorIs(t, idx.Flush(context.Background()), ErrClosed)

	reopened, err := OpenSQLite(path, quietLogger())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Actions(context.Background(), entity.AliceID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, service.ActionEat, got[0].Action)
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAction}

	s.RecordAction(service.AuditEntry{Tick: 2})
	s.RecordSnapshot(2, "/tmp/2.snap.zst", 1)

	st := s.Stats()
	assert.Equal(t, uint64(1), st.DropActionTotal)
	assert.Equal(t, uint64(1), st.DropSnapshotTotal)
	assert.Equal(t, 1, st.QueueDepth)
	assert.Equal(t, 1, st.QueueCapacity)
}

// Индекс подключается к миру как журнал действий.
func TestSQLiteIndex_AsWorldAuditSink(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	w := service.NewWorldService(physicstest.New(), quietLogger())
	require.NoError(t, w.Bootstrap(ctx))
	w.SetAuditSink(idx)

	require.NoError(t, w.Step(ctx, 1))
	res := w.ExecuteAction(ctx, service.ActionRequest{AgentID: entity.BobID, Action: service.ActionSleep})
	require.True(t, res.Success)
	require.NoError(t, idx.Flush(ctx))

	got, err := idx.Actions(ctx, entity.BobID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Tick)
	assert.Equal(t, service.ActionSleep, got[0].Action)
	assert.Equal(t, entity.CodeOK, got[0].Code)
}
