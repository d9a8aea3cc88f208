package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func TestEmitQueuesEnvelope(t *testing.T) {
	conn := openTestDB(t)
	svc := NewService(NewRepository(conn), nil)

	tx := conn.Begin()
	err := svc.Emit(context.Background(), tx, DomainEvent{
		EventType:     enums.EventAnnouncementsSaved,
		AggregateType: enums.AggregateAnnouncement,
		AggregateID:   "announcements",
		Actor:         &ActorRef{DeviceID: "dev-1", Role: "volunteer"},
		Data:          map[string]string{"id": "announcements"},
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit().Error)

	rows, err := NewRepository(conn).FetchPending(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.EventAnnouncementsSaved, rows[0].EventType)
	require.Equal(t, "announcements", rows[0].AggregateID)
	require.Contains(t, string(rows[0].Payload), `"deviceId":"dev-1"`)
	require.Contains(t, string(rows[0].Payload), `"version":1`)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(openTestDB(t)), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestFetchPendingOrderAndAttemptCap(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	tx := conn.Begin()
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventAnnouncementsSaved,
			AggregateType: enums.AggregateAnnouncement,
			AggregateID:   id,
			Data:          map[string]string{"id": id},
		}))
	}
	require.NoError(t, tx.Commit().Error)

	rows, err := repo.FetchPending(10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "first", rows[0].AggregateID)
	require.Equal(t, "third", rows[2].AggregateID)

	// Exhaust attempts on the head row; it parks and stops blocking the rest.
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkFailed(rows[0].ID, errors.New("mirror unreachable")))
	}
	remaining, err := repo.FetchPending(10, 3)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	require.Equal(t, "second", remaining[0].AggregateID)
}

func TestMarkPublishedAndPurge(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	tx := conn.Begin()
	require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
		EventType:     enums.EventProductAdded,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "prod-1",
		Data:          map[string]string{"id": "prod-1"},
	}))
	require.NoError(t, tx.Commit().Error)

	rows, err := repo.FetchPending(1, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, repo.MarkPublished(rows[0].ID))

	count, err := repo.CountPending()
	require.NoError(t, err)
	require.Zero(t, count)

	purged, err := repo.PurgePublished(time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
}

func TestOldestPendingAge(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)

	age, err := repo.OldestPendingAge(time.Now())
	require.NoError(t, err)
	require.Zero(t, age)

	svc := NewService(repo, nil)
	tx := conn.Begin()
	require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
		EventType:     enums.EventAnnouncementsSaved,
		AggregateType: enums.AggregateAnnouncement,
		AggregateID:   "announcements",
		Data:          map[string]string{},
	}))
	require.NoError(t, tx.Commit().Error)

	age, err = repo.OldestPendingAge(time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Greater(t, age, time.Duration(0))
}
