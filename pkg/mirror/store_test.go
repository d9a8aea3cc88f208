package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNilStoreReportsUnconfigured(t *testing.T) {
	ctx := context.Background()
	var store *Store

	require.ErrorIs(t, store.Ping(ctx), ErrUnconfigured)
	require.ErrorIs(t, store.PutOrder(ctx, OrderDoc{ID: "o-1"}), ErrUnconfigured)
	require.ErrorIs(t, store.DeleteOrder(ctx, "o-1"), ErrUnconfigured)
	require.ErrorIs(t, store.ClearProducts(ctx), ErrUnconfigured)
	require.ErrorIs(t, store.SaveDailyGoal(ctx, DailyGoalDoc{}), ErrUnconfigured)

	_, err := store.OrdersBetween(ctx, time.Time{}, time.Now())
	require.ErrorIs(t, err, ErrUnconfigured)

	_, _, err = store.Subscribe(ctx, CollectionOrders)
	require.ErrorIs(t, err, ErrUnconfigured)
}

func TestNewWithNilClientYieldsNilStore(t *testing.T) {
	store := New(nil)
	require.Nil(t, store)
	require.True(t, errors.Is(store.Ping(context.Background()), ErrUnconfigured))
}

func TestChunkProducts(t *testing.T) {
	docs := make([]ProductDoc, 1201)
	for i := range docs {
		docs[i] = ProductDoc{ID: "p"}
	}

	chunks := chunkProducts(docs, 500)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 500)
	require.Len(t, chunks[1], 500)
	require.Len(t, chunks[2], 201)

	require.Nil(t, chunkProducts(nil, 500))

	single := chunkProducts(docs[:3], 0)
	require.Len(t, single, 1)
	require.Len(t, single[0], 3)
}

func TestChunkStrings(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	chunks := chunkStrings(keys, 2)
	require.Len(t, chunks, 3)
	require.Equal(t, []string{"e"}, chunks[2])
	require.Nil(t, chunkStrings(nil, 2))
}
