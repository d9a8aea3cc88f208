package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/urbanoasis/farmstand-backend/pkg/redis"
)

// batchLimit caps how many document writes ride in one pipeline. Mirrors
// the remote store's per-batch operation ceiling.
const batchLimit = 500

// ErrUnconfigured is returned when no remote store is configured. Callers
// treat it as a station running offline rather than a failure.
var ErrUnconfigured = errors.New("mirror: remote store not configured")

// ErrNotFound is returned when a requested document does not exist remotely.
var ErrNotFound = errors.New("mirror: document not found")

// Store mirrors the station ledger into the remote document store. A nil
// Store is valid and reports ErrUnconfigured from every operation, which
// lets stations run fully offline.
type Store struct {
	client *redisclient.Client
}

// New wraps the given redis client. Passing nil yields an unconfigured
// store.
func New(client *redisclient.Client) *Store {
	if client == nil {
		return nil
	}
	return &Store{client: client}
}

func (s *Store) ready() error {
	if s == nil || s.client == nil {
		return ErrUnconfigured
	}
	return nil
}

// Ping probes the remote store. Unconfigured stores report ErrUnconfigured.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.client.Ping(ctx)
}

// PutOrder upserts an order document and indexes it by creation time.
func (s *Store) PutOrder(ctx context.Context, doc OrderDoc) error {
	if err := s.ready(); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal order doc: %w", err)
	}
	key := s.client.DocKey(CollectionOrders, doc.ID)
	idx := s.client.IndexKey(CollectionOrders)
	err = s.client.Pipeline(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, key, raw, 0)
		pipe.ZAdd(ctx, idx, goredis.Z{
			Score:  float64(doc.CreatedAt.UnixMilli()),
			Member: doc.ID,
		})
		return nil
	})
	if err != nil {
		return err
	}
	return s.notify(ctx, CollectionOrders)
}

// DeleteOrder removes an order document and its index entry.
func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	key := s.client.DocKey(CollectionOrders, id)
	idx := s.client.IndexKey(CollectionOrders)
	err := s.client.Pipeline(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, idx, id)
		return nil
	})
	if err != nil {
		return err
	}
	return s.notify(ctx, CollectionOrders)
}

// OrdersBetween returns order documents created within [from, to],
// ascending by creation time.
func (s *Store) OrdersBetween(ctx context.Context, from, to time.Time) ([]OrderDoc, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ids, err := s.client.ZRangeByScore(ctx, s.client.IndexKey(CollectionOrders),
		float64(from.UnixMilli()), float64(to.UnixMilli()))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.client.DocKey(CollectionOrders, id))
	}
	values, err := s.client.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	docs := make([]OrderDoc, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var doc OrderDoc
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal order doc: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// PutProduct upserts a single product document.
func (s *Store) PutProduct(ctx context.Context, doc ProductDoc) error {
	if err := s.ready(); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal product doc: %w", err)
	}
	if err := s.client.Set(ctx, s.client.DocKey(CollectionProducts, doc.ID), raw, 0); err != nil {
		return err
	}
	return s.notify(ctx, CollectionProducts)
}

// DeleteProduct removes a product document.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.client.DocKey(CollectionProducts, id)); err != nil {
		return err
	}
	return s.notify(ctx, CollectionProducts)
}

// ReplaceProducts wipes the remote catalog and writes the provided set in
// pipeline batches.
func (s *Store) ReplaceProducts(ctx context.Context, docs []ProductDoc) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.deleteCollection(ctx, CollectionProducts); err != nil {
		return err
	}
	for _, chunk := range chunkProducts(docs, batchLimit) {
		chunk := chunk
		err := s.client.Pipeline(ctx, func(pipe goredis.Pipeliner) error {
			for _, doc := range chunk {
				raw, err := json.Marshal(doc)
				if err != nil {
					return fmt.Errorf("marshal product doc: %w", err)
				}
				pipe.Set(ctx, s.client.DocKey(CollectionProducts, doc.ID), raw, 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return s.notify(ctx, CollectionProducts)
}

// ClearProducts deletes every remote product document.
func (s *Store) ClearProducts(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.deleteCollection(ctx, CollectionProducts); err != nil {
		return err
	}
	return s.notify(ctx, CollectionProducts)
}

// Products returns every remote product document.
func (s *Store) Products(ctx context.Context) ([]ProductDoc, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	keys, err := s.client.Keys(ctx, s.client.DocKey(CollectionProducts, "*"))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	docs := make([]ProductDoc, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var doc ProductDoc
		if err := json.Unmarshal([]byte(str), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal product doc: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveAnnouncements replaces the announcements singleton.
func (s *Store) SaveAnnouncements(ctx context.Context, doc AnnouncementsDoc) error {
	return s.putSingleton(ctx, DocAnnouncements, doc)
}

// Announcements loads the announcements singleton.
func (s *Store) Announcements(ctx context.Context) (AnnouncementsDoc, error) {
	var doc AnnouncementsDoc
	err := s.getSingleton(ctx, DocAnnouncements, &doc)
	return doc, err
}

// SaveDailyGoal replaces the daily goal singleton.
func (s *Store) SaveDailyGoal(ctx context.Context, doc DailyGoalDoc) error {
	return s.putSingleton(ctx, DocDailyGoal, doc)
}

// DailyGoal loads the daily goal singleton.
func (s *Store) DailyGoal(ctx context.Context) (DailyGoalDoc, error) {
	var doc DailyGoalDoc
	err := s.getSingleton(ctx, DocDailyGoal, &doc)
	return doc, err
}

// SavePins replaces the hashed PIN singleton.
func (s *Store) SavePins(ctx context.Context, doc PinsDoc) error {
	return s.putSingleton(ctx, DocPins, doc)
}

// Pins loads the hashed PIN singleton.
func (s *Store) Pins(ctx context.Context) (PinsDoc, error) {
	var doc PinsDoc
	err := s.getSingleton(ctx, DocPins, &doc)
	return doc, err
}

func (s *Store) putSingleton(ctx context.Context, id string, doc any) error {
	if err := s.ready(); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s doc: %w", id, err)
	}
	if err := s.client.Set(ctx, s.client.DocKey(CollectionSettings, id), raw, 0); err != nil {
		return err
	}
	return s.notify(ctx, CollectionSettings)
}

func (s *Store) getSingleton(ctx context.Context, id string, out any) error {
	if err := s.ready(); err != nil {
		return err
	}
	raw, err := s.client.Get(ctx, s.client.DocKey(CollectionSettings, id))
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (s *Store) deleteCollection(ctx context.Context, collection string) error {
	keys, err := s.client.Keys(ctx, s.client.DocKey(collection, "*"))
	if err != nil {
		return err
	}
	for _, chunk := range chunkStrings(keys, batchLimit) {
		if err := s.client.Del(ctx, chunk...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) notify(ctx context.Context, collection string) error {
	payload := fmt.Sprintf(`{"collection":%q,"at":%q}`, collection, time.Now().UTC().Format(time.RFC3339Nano))
	return s.client.Publish(ctx, s.client.ChannelKey(collection), payload)
}

func chunkProducts(docs []ProductDoc, size int) [][]ProductDoc {
	if size <= 0 || len(docs) == 0 {
		if len(docs) == 0 {
			return nil
		}
		return [][]ProductDoc{docs}
	}
	var out [][]ProductDoc
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		out = append(out, docs[start:end])
	}
	return out
}

func chunkStrings(keys []string, size int) [][]string {
	if len(keys) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]string{keys}
	}
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}
