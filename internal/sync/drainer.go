package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/db/models"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
	"github.com/urbanoasis/farmstand-backend/pkg/metrics"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
	"github.com/urbanoasis/farmstand-backend/pkg/outbox"
)

// maxBackoff caps the retry delay while the mirror is unreachable.
const maxBackoff = 10 * time.Second

// Delivered events are trimmed hourly once they are a day old, so the queue
// table stays small across a long market season.
const (
	purgeInterval      = time.Hour
	publishedRetention = 24 * time.Hour
)

// remoteApplier is the slice of the mirror the drainer writes to.
type remoteApplier interface {
	PutProduct(ctx context.Context, doc mirror.ProductDoc) error
	DeleteProduct(ctx context.Context, id string) error
	ReplaceProducts(ctx context.Context, docs []mirror.ProductDoc) error
	SaveAnnouncements(ctx context.Context, doc mirror.AnnouncementsDoc) error
	SaveDailyGoal(ctx context.Context, doc mirror.DailyGoalDoc) error
	SavePins(ctx context.Context, doc mirror.PinsDoc) error
}

// Drainer replays queued outbox events against the remote mirror, strictly
// in insertion order. A failure stops the batch: later events routinely
// rewrite the same documents, so skipping ahead could apply stale state.
type Drainer struct {
	queue   *outbox.Repository
	remote  remoteApplier
	cfg     config.OutboxConfig
	metrics *metrics.SyncMetrics
	logg    *logger.Logger
	kick    chan struct{}
	now     func() time.Time

	lastPurge time.Time
}

// NewDrainer wires the outbox drainer.
func NewDrainer(queue *outbox.Repository, remote remoteApplier, cfg config.OutboxConfig, m *metrics.SyncMetrics, logg *logger.Logger) (*Drainer, error) {
	if queue == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote mirror required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 500
	}
	return &Drainer{
		queue:   queue,
		remote:  remote,
		cfg:     cfg,
		metrics: m,
		logg:    logg,
		kick:    make(chan struct{}, 1),
		now:     time.Now,
	}, nil
}

// Kick requests an immediate drain pass, coalescing repeated requests.
func (d *Drainer) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Run drains until the context is canceled. While the mirror is failing the
// poll interval backs off exponentially, with jitter so a fleet of stations
// does not hammer a recovering Redis in lockstep.
func (d *Drainer) Run(ctx context.Context) {
	poll := time.Duration(d.cfg.PollIntervalMS) * time.Millisecond
	backoff := poll

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
		case <-time.After(withJitter(backoff)):
		}

		drained, err := d.DrainOnce(ctx)
		d.updateGauges()
		if err != nil {
			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = poll
		d.maybePurge(ctx)
		if drained > 0 {
			// More may be waiting; go straight back around.
			d.Kick()
		}
	}
}

// maybePurge trims delivered events past their retention, at most once per
// purge interval.
func (d *Drainer) maybePurge(ctx context.Context) {
	now := d.now()
	if now.Sub(d.lastPurge) < purgeInterval {
		return
	}
	d.lastPurge = now
	if _, err := d.queue.PurgePublished(now.Add(-publishedRetention)); err != nil && d.logg != nil {
		d.logg.Warn(d.logg.WithField(ctx, "error", err.Error()), "outbox purge failed")
	}
}

// DrainOnce delivers at most one batch. Returns how many events published.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	events, err := d.queue.FetchPending(d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		start := d.now()
		if err := d.apply(ctx, event); err != nil {
			d.metrics.IncFailed(string(event.EventType))
			if markErr := d.queue.MarkFailed(event.ID, err); markErr != nil && d.logg != nil {
				d.logg.Error(ctx, "record outbox failure", markErr)
			}
			if d.logg != nil {
				fields := map[string]any{
					"event_id":   event.ID.String(),
					"event_type": event.EventType,
					"attempt":    event.AttemptCount + 1,
					"error":      err.Error(),
				}
				d.logg.Warn(d.logg.WithFields(ctx, fields), "outbox delivery failed")
			}
			return published, err
		}
		d.metrics.ObservePublish(string(event.EventType), d.now().Sub(start))
		if err := d.queue.MarkPublished(event.ID); err != nil {
			return published, err
		}
		d.metrics.IncPublished(string(event.EventType))
		published++
	}
	return published, nil
}

func (d *Drainer) apply(ctx context.Context, event models.OutboxEvent) error {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	switch event.EventType {
	case enums.EventProductAdded:
		var doc mirror.ProductDoc
		if err := json.Unmarshal(envelope.Data, &doc); err != nil {
			return fmt.Errorf("decode product: %w", err)
		}
		return d.remote.PutProduct(ctx, doc)
	case enums.EventProductDeleted:
		var doc mirror.ProductDoc
		if err := json.Unmarshal(envelope.Data, &doc); err != nil {
			return fmt.Errorf("decode product: %w", err)
		}
		return d.remote.DeleteProduct(ctx, doc.ID)
	case enums.EventCatalogReplaced:
		var docs []mirror.ProductDoc
		if err := json.Unmarshal(envelope.Data, &docs); err != nil {
			return fmt.Errorf("decode catalog: %w", err)
		}
		return d.remote.ReplaceProducts(ctx, docs)
	case enums.EventAnnouncementsSaved:
		var doc mirror.AnnouncementsDoc
		if err := json.Unmarshal(envelope.Data, &doc); err != nil {
			return fmt.Errorf("decode announcements: %w", err)
		}
		return d.remote.SaveAnnouncements(ctx, doc)
	case enums.EventDailyGoalSaved:
		var doc mirror.DailyGoalDoc
		if err := json.Unmarshal(envelope.Data, &doc); err != nil {
			return fmt.Errorf("decode daily goal: %w", err)
		}
		return d.remote.SaveDailyGoal(ctx, doc)
	case enums.EventPinsSaved:
		var doc mirror.PinsDoc
		if err := json.Unmarshal(envelope.Data, &doc); err != nil {
			return fmt.Errorf("decode pins: %w", err)
		}
		return d.remote.SavePins(ctx, doc)
	default:
		return fmt.Errorf("unknown event type %q", event.EventType)
	}
}

func (d *Drainer) updateGauges() {
	if count, err := d.queue.CountPending(); err == nil {
		d.metrics.SetPending(count)
	}
	if age, err := d.queue.OldestPendingAge(d.now()); err == nil {
		d.metrics.SetOldestPendingAge(age)
	}
}

func withJitter(d time.Duration) time.Duration {
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d + jitter
}
