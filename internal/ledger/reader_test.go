package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-ledger/pkg/db/models"
	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-ledger/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.LedgerEvent{}))
	return conn
}

func seedEvents(t *testing.T, conn *gorm.DB, base time.Time, n int) {
	t.Helper()
	repo := NewRepository(conn)
	variant := uuid.New()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Append(context.Background(), &models.LedgerEvent{
			EventID:    uuid.New(),
			EntityType: enums.LedgerEntityInventory,
			EntityID:   variant,
			EventType:  enums.LedgerEventStockAdded,
			ActorType:  enums.LedgerActorSystem,
			Payload:    []byte(`{"qty":1}`),
			// identical timestamps exercise the seq tie-break
			CreatedAt: base.Add(time.Duration(i/2) * time.Minute),
		}))
	}
}

func collect(t *testing.T, reader *Reader, window Window) []models.LedgerEvent {
	t.Helper()
	var out []models.LedgerEvent
	for event, err := range reader.ReadEvents(context.Background(), window) {
		require.NoError(t, err)
		out = append(out, event)
	}
	return out
}

func TestReader_PagesInSeqOrder(t *testing.T) {
	conn := newTestDB(t)
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	seedEvents(t, conn, base, 7)

	reader, err := NewReader(NewRepository(conn), 3)
	require.NoError(t, err)

	events := collect(t, reader, Window{})
	require.Len(t, events, 7)
	for i := 1; i < len(events); i++ {
		require.Greater(t, events[i].Seq, events[i-1].Seq)
	}

	again := collect(t, reader, Window{})
	require.Equal(t, events, again, "sequence should be restartable")
}

func TestReader_Window(t *testing.T) {
	conn := newTestDB(t)
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	seedEvents(t, conn, base, 6) // minutes 0,0,1,1,2,2

	reader, err := NewReader(NewRepository(conn), 2)
	require.NoError(t, err)

	from := base.Add(time.Minute)
	to := base.Add(time.Minute)
	events := collect(t, reader, Window{From: &from, To: &to})
	require.Len(t, events, 2)

	upTo := collect(t, reader, Window{From: &from, To: &to}.UpTo())
	require.Len(t, upTo, 4)
}

func TestReader_StopsEarly(t *testing.T) {
	conn := newTestDB(t)
	seedEvents(t, conn, time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC), 5)
	reader, err := NewReader(NewRepository(conn), 2)
	require.NoError(t, err)

	count := 0
	for _, err := range reader.ReadEvents(context.Background(), Window{}) {
		require.NoError(t, err)
		count++
		if count == 3 {
			break
		}
	}
	require.Equal(t, 3, count)
}

type failingRepo struct {
	Repository
	err error
}

func (f failingRepo) ListAfter(ctx context.Context, afterSeq int64, window Window, limit int) ([]models.LedgerEvent, error) {
	return nil, f.err
}

func TestReader_TransportErrorIsYielded(t *testing.T) {
	cause := errors.New("connection reset")
	reader, err := NewReader(failingRepo{err: cause}, 10)
	require.NoError(t, err)

	var got []error
	for _, err := range reader.ReadEvents(context.Background(), Window{}) {
		got = append(got, err)
	}
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0], cause)
	require.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(got[0]).Code())
}

func TestReader_CancelledContext(t *testing.T) {
	conn := newTestDB(t)
	seedEvents(t, conn, time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC), 2)
	reader, err := NewReader(NewRepository(conn), 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, err := range reader.ReadEvents(ctx, Window{}) {
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestRepository_ListByEntity(t *testing.T) {
	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := uuid.New()
	other := uuid.New()
	for _, id := range []uuid.UUID{order, other, order} {
		require.NoError(t, repo.Append(ctx, &models.LedgerEvent{
			EventID:    uuid.New(),
			EntityType: enums.LedgerEntityOrder,
			EntityID:   id,
			EventType:  enums.LedgerEventCreated,
			ActorType:  enums.LedgerActorUser,
			Payload:    []byte(`{}`),
			CreatedAt:  time.Now().UTC(),
		}))
	}

	events, err := repo.ListByEntity(ctx, enums.LedgerEntityOrder, order, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Less(t, events[0].Seq, events[1].Seq)

	tail, err := repo.ListByEntity(ctx, enums.LedgerEntityOrder, order, events[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, events[1].Seq, tail[0].Seq)
}
