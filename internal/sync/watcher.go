package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/logger"
	"github.com/urbanoasis/farmstand-backend/pkg/metrics"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type orderSyncer interface {
	SyncPendingOrders(ctx context.Context) (int, error)
	RefreshFromMirror(ctx context.Context) error
}

type refresher interface {
	RefreshFromMirror(ctx context.Context) error
}

type kicker interface {
	Kick()
}

type subscriber interface {
	Subscribe(ctx context.Context, collection string) (<-chan mirror.ChangeNotice, func(), error)
}

// Watcher tracks mirror reachability. Coming back online pushes the pending
// order queue, kicks the outbox drainer, and pulls fresh order, catalog, and
// settings state so the station converges with its peers.
type Watcher struct {
	remote   pinger
	orders   orderSyncer
	catalog  refresher
	settings refresher
	drainer  kicker
	sub      subscriber
	cfg      config.SyncConfig
	metrics  *metrics.SyncMetrics
	logg     *logger.Logger

	mu         gosync.Mutex
	online     bool
	everOnline bool
	subscribed bool
}

// NewWatcher wires the connectivity watcher. catalog, settings, drainer, and
// sub may be nil when the corresponding reaction is not wanted.
func NewWatcher(remote pinger, orders orderSyncer, catalog, settings refresher, drainer kicker, sub subscriber, cfg config.SyncConfig, m *metrics.SyncMetrics, logg *logger.Logger) (*Watcher, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote mirror required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order syncer required")
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	return &Watcher{
		remote:   remote,
		orders:   orders,
		catalog:  catalog,
		settings: settings,
		drainer:  drainer,
		sub:      sub,
		cfg:      cfg,
		metrics:  m,
		logg:     logg,
	}, nil
}

// Online reports the last observed reachability.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Run pings until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	w.check(ctx)

	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

// check performs one ping and reacts to reachability transitions.
func (w *Watcher) check(ctx context.Context) {
	err := w.remote.Ping(ctx)
	nowOnline := err == nil

	w.mu.Lock()
	wasOnline := w.online
	first := !w.everOnline && nowOnline
	w.online = nowOnline
	if nowOnline {
		w.everOnline = true
	}
	w.mu.Unlock()

	w.metrics.SetOnline(nowOnline)

	if nowOnline && (!wasOnline || first) {
		w.onReconnect(ctx)
	}
	if !nowOnline && wasOnline && w.logg != nil {
		w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "remote mirror unreachable")
	}
}

func (w *Watcher) onReconnect(ctx context.Context) {
	if w.logg != nil {
		w.logg.Info(ctx, "remote mirror reachable")
	}

	if synced, err := w.orders.SyncPendingOrders(ctx); err != nil {
		if w.logg != nil {
			w.logg.Error(ctx, "pending order sync on reconnect failed", err)
		}
	} else if synced > 0 && w.logg != nil {
		w.logg.Info(w.logg.WithField(ctx, "orders", synced), "pending orders pushed to mirror")
	}
	if err := w.orders.RefreshFromMirror(ctx); err != nil && w.logg != nil {
		w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "order refresh on reconnect failed")
	}

	if w.drainer != nil {
		w.drainer.Kick()
	}
	if w.catalog != nil {
		if err := w.catalog.RefreshFromMirror(ctx); err != nil && w.logg != nil {
			w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "catalog refresh on reconnect failed")
		}
	}
	if w.settings != nil {
		if err := w.settings.RefreshFromMirror(ctx); err != nil && w.logg != nil {
			w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "settings refresh on reconnect failed")
		}
	}

	w.ensureSubscriptions(ctx)
}

// ensureSubscriptions starts the pub/sub listeners once. The underlying
// client reconnects its subscriptions itself, so one successful start is
// enough for the life of the process.
func (w *Watcher) ensureSubscriptions(ctx context.Context) {
	if w.sub == nil {
		return
	}
	w.mu.Lock()
	already := w.subscribed
	w.mu.Unlock()
	if already {
		return
	}

	productCh, stopProducts, err := w.sub.Subscribe(ctx, mirror.CollectionProducts)
	if err != nil {
		return
	}
	settingsCh, stopSettings, err := w.sub.Subscribe(ctx, mirror.CollectionSettings)
	if err != nil {
		stopProducts()
		return
	}
	orderCh, stopOrders, err := w.sub.Subscribe(ctx, mirror.CollectionOrders)
	if err != nil {
		stopProducts()
		stopSettings()
		return
	}

	w.mu.Lock()
	w.subscribed = true
	w.mu.Unlock()

	go w.pump(ctx, productCh, w.catalog, stopProducts)
	go w.pump(ctx, settingsCh, w.settings, stopSettings)
	go w.pump(ctx, orderCh, w.orders, stopOrders)
}

func (w *Watcher) pump(ctx context.Context, ch <-chan mirror.ChangeNotice, target refresher, stop func()) {
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if target == nil {
				continue
			}
			if err := target.RefreshFromMirror(ctx); err != nil && w.logg != nil {
				w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "change notice refresh failed")
			}
		}
	}
}
