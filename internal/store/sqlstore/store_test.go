package sqlstore

import (
	"context"
	"fmt"
	"slotwatch/internal/components/chrono"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"testing"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) Store {
	clock, err := chrono.NewStandardImpl("UTC")
	require.NoError(t, err)
	store, err := Open(":memory:", clock, telemetry.NewRecorder())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var _ slots.Store = Store{}
var _ slots.Lister = Store{}

func TestStore(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	{
		res, err := store.Lookup(ctx, []string{"01/01/2024-9:00"})
		require.NoError(t, err)
		require.Empty(t, res.Confirmed)
		require.Empty(t, res.Unknown)
	}
	{
		err := store.Put(ctx, []string{"01/01/2024-9:00", "02/01/2024-10:00"})
		require.NoError(t, err)

		// upsert: putting an existing slot is not an error
		err = store.Put(ctx, []string{"01/01/2024-9:00"})
		require.NoError(t, err)
	}
	{
		res, err := store.Lookup(ctx, []string{"02/01/2024-10:00", "03/01/2024-9:00", "01/01/2024-9:00"})
		require.NoError(t, err)
		require.Equal(t, []string{"01/01/2024-9:00", "02/01/2024-10:00"}, res.Confirmed)
	}
	{
		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"01/01/2024-9:00", "02/01/2024-10:00"}, list)
	}
}

func TestStoreLookupManyIds(t *testing.T) {
	store := setup(t)
	ctx := context.Background()

	ids := make([]string, 1200)
	for i := range ids {
		ids[i] = fmt.Sprintf("slot-%04d", i)
	}
	for _, chunk := range slots.Partition(ids[:600], slots.BatchLimit) {
		require.NoError(t, store.Put(ctx, chunk))
	}

	res, err := store.Lookup(ctx, ids)
	require.NoError(t, err)
	require.Len(t, res.Confirmed, 600)
}

func TestStoreReconcile(t *testing.T) {
	store := setup(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, []string{"01/01/2024-9:00"}))

	notifier := &recordingNotifier{}
	reconciler := slots.NewReconciler("https://example.com", store, notifier, telemetry.NewRecorder())

	out, err := reconciler.Reconcile(ctx, []string{"01/01/2024-9:00", "02/01/2024-10:00"})
	require.NoError(t, err)
	require.Equal(t, []string{"02/01/2024-10:00"}, out.NewSlots)
	require.Len(t, notifier.sent, 1)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"01/01/2024-9:00", "02/01/2024-10:00"}, list)
}

type recordingNotifier struct {
	sent []slots.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification slots.Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}
