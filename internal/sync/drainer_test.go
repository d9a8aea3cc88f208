package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
	"github.com/urbanoasis/farmstand-backend/pkg/outbox"
)

type stubApplier struct {
	applied   []string
	putErr    error
	products  []mirror.ProductDoc
	replaced  [][]mirror.ProductDoc
	deleted   []string
	announces []mirror.AnnouncementsDoc
	goals     []mirror.DailyGoalDoc
	pins      []mirror.PinsDoc
}

func (s *stubApplier) PutProduct(_ context.Context, doc mirror.ProductDoc) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.applied = append(s.applied, "put:"+doc.ID)
	s.products = append(s.products, doc)
	return nil
}

func (s *stubApplier) DeleteProduct(_ context.Context, id string) error {
	s.applied = append(s.applied, "delete:"+id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubApplier) ReplaceProducts(_ context.Context, docs []mirror.ProductDoc) error {
	s.applied = append(s.applied, "replace")
	s.replaced = append(s.replaced, docs)
	return nil
}

func (s *stubApplier) SaveAnnouncements(_ context.Context, doc mirror.AnnouncementsDoc) error {
	s.applied = append(s.applied, "announcements")
	s.announces = append(s.announces, doc)
	return nil
}

func (s *stubApplier) SaveDailyGoal(_ context.Context, doc mirror.DailyGoalDoc) error {
	s.applied = append(s.applied, "goal")
	s.goals = append(s.goals, doc)
	return nil
}

func (s *stubApplier) SavePins(_ context.Context, doc mirror.PinsDoc) error {
	s.applied = append(s.applied, "pins")
	s.pins = append(s.pins, doc)
	return nil
}

func newOutboxDB(t *testing.T) (*gorm.DB, *outbox.Repository, *outbox.Service) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	repo := outbox.NewRepository(conn)
	return conn, repo, outbox.NewService(repo, nil)
}

func emit(t *testing.T, conn *gorm.DB, svc *outbox.Service, event outbox.DomainEvent) {
	t.Helper()
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, event)
	}))
}

func newDrainer(t *testing.T, repo *outbox.Repository, remote remoteApplier) *Drainer {
	t.Helper()
	d, err := NewDrainer(repo, remote, config.OutboxConfig{
		BatchSize:   50,
		MaxAttempts: 3,
	}, nil, nil)
	require.NoError(t, err)
	return d
}

func TestDrainOnceAppliesInInsertionOrder(t *testing.T) {
	conn, repo, svc := newOutboxDB(t)
	remote := &stubApplier{}
	drainer := newDrainer(t, repo, remote)

	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventProductAdded,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "p1",
		Data:          mirror.ProductDoc{ID: "p1", Name: "Kale"},
	})
	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventProductDeleted,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "p1",
		Data:          mirror.ProductDoc{ID: "p1"},
	})
	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventAnnouncementsSaved,
		AggregateType: enums.AggregateAnnouncement,
		AggregateID:   mirror.DocAnnouncements,
		Data:          mirror.AnnouncementsDoc{},
	})

	published, err := drainer.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, published)
	require.Equal(t, []string{"put:p1", "delete:p1", "announcements"}, remote.applied)

	count, err := repo.CountPending()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDrainOnceStopsBatchOnFailure(t *testing.T) {
	conn, repo, svc := newOutboxDB(t)
	remote := &stubApplier{putErr: errors.New("mirror down")}
	drainer := newDrainer(t, repo, remote)

	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventProductAdded,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "p1",
		Data:          mirror.ProductDoc{ID: "p1"},
	})
	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventAnnouncementsSaved,
		AggregateType: enums.AggregateAnnouncement,
		AggregateID:   mirror.DocAnnouncements,
		Data:          mirror.AnnouncementsDoc{},
	})

	published, err := drainer.DrainOnce(context.Background())
	require.Error(t, err)
	require.Zero(t, published)
	// The later event must not leapfrog the failed one.
	require.Empty(t, remote.announces)

	count, err := repo.CountPending()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	// Recovery resumes from the head.
	remote.putErr = nil
	published, err = drainer.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, published)
	require.Equal(t, []string{"put:p1", "announcements"}, remote.applied)
}

func TestDrainOnceParksExhaustedEvents(t *testing.T) {
	conn, repo, svc := newOutboxDB(t)
	remote := &stubApplier{putErr: errors.New("mirror down")}
	drainer := newDrainer(t, repo, remote)

	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventProductAdded,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "p1",
		Data:          mirror.ProductDoc{ID: "p1"},
	})

	for i := 0; i < 3; i++ {
		_, err := drainer.DrainOnce(context.Background())
		require.Error(t, err)
	}

	// Attempts exhausted: the event is parked, not retried.
	remote.putErr = nil
	published, err := drainer.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, published)
	require.Empty(t, remote.products)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	require.Equal(t, 3, row.AttemptCount)
	require.NotNil(t, row.LastError)
	require.Nil(t, row.PublishedAt)
}

func TestDrainOnceCatalogReplace(t *testing.T) {
	conn, repo, svc := newOutboxDB(t)
	remote := &stubApplier{}
	drainer := newDrainer(t, repo, remote)

	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventCatalogReplaced,
		AggregateType: enums.AggregateCatalog,
		AggregateID:   "catalog",
		Data: []mirror.ProductDoc{
			{ID: "a", Name: "Apples"},
			{ID: "b", Name: "Basil"},
		},
	})

	published, err := drainer.DrainOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, published)
	require.Len(t, remote.replaced, 1)
	require.Len(t, remote.replaced[0], 2)
}

func TestMaybePurgeTrimsDeliveredEvents(t *testing.T) {
	conn, repo, svc := newOutboxDB(t)
	drainer := newDrainer(t, repo, &stubApplier{})

	emit(t, conn, svc, outbox.DomainEvent{
		EventType:     enums.EventProductAdded,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "p1",
		Data:          mirror.ProductDoc{ID: "p1", Name: "Kale"},
	})
	_, err := drainer.DrainOnce(context.Background())
	require.NoError(t, err)

	// Freshly delivered events are inside the retention window.
	drainer.maybePurge(context.Background())
	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	drainer.now = func() time.Time {
		return time.Now().Add(publishedRetention + time.Hour)
	}
	drainer.lastPurge = time.Time{}
	drainer.maybePurge(context.Background())
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestKickCoalesces(t *testing.T) {
	_, repo, _ := newOutboxDB(t)
	drainer := newDrainer(t, repo, &stubApplier{})

	drainer.Kick()
	drainer.Kick()
	drainer.Kick()

	select {
	case <-drainer.kick:
	default:
		t.Fatal("expected one queued kick")
	}
	select {
	case <-drainer.kick:
		t.Fatal("kicks must coalesce")
	default:
	}
}
