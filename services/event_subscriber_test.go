package services

import (
	"context"
	"testing"

	"bom-analytics-helper/models"
	"bom-analytics-helper/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSubscriberHandleOrderEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SeedProduct(t, db, 55, "Steel bolt", true, "product-part")
	testutil.SeedOrder(t, db, 10, 0, orderCreated,
		testutil.Line{ItemID: 100, Components: []testutil.Component{{BOMID: 55, Qty: 4}}},
	)

	hooks := NewHooks()
	sync := NewSyncService(db, hooks)
	sub := NewEventSubscriber(nil, "events", hooks, NewBackfillService(db, sync))
	ctx := context.Background()

	require.NoError(t, sub.Handle(ctx, []byte(`{"type":"order_status_changed","order_id":10,"old_status":"processing","new_status":"on-hold"}`)))
	assert.Empty(t, testutil.LookupRows(t, db, 10))

	require.NoError(t, sub.Handle(ctx, []byte(`{"type":"payment_complete","order_id":10}`)))
	assert.Len(t, testutil.LookupRows(t, db, 10), 1)
}

func TestEventSubscriberHandleBackfillBatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedOrders(t, db, 3)

	svc := newTestBackfill(db)
	started := "2024-05-01 11:00:00"
	require.NoError(t, svc.store.Save(context.Background(), &models.BackfillProgress{Total: 3, Status: models.BackfillStatusRunning, Started: &started}))

	sub := NewEventSubscriber(nil, "events", NewHooks(), svc)
	require.NoError(t, sub.Handle(context.Background(), []byte(`{"type":"backfill_batch","offset":0}`)))

	progress, err := svc.GetProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Processed)
	assert.Equal(t, models.BackfillStatusCompleted, progress.Status)
}

func TestEventSubscriberRejectsBadPayloads(t *testing.T) {
	sub := NewEventSubscriber(nil, "events", NewHooks(), nil)
	ctx := context.Background()

	assert.Error(t, sub.Handle(ctx, []byte(`not json`)))
	assert.ErrorIs(t, sub.Handle(ctx, []byte(`{"type":"order_deleted","order_id":1}`)), ErrUnknownEventType)
	assert.Error(t, sub.Handle(ctx, []byte(`{"type":"backfill_batch"}`)))
	assert.Error(t, sub.Start(ctx))
}
