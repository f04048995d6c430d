package syncclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/localstore"
)

type fakeTransport struct {
	pushed      [][]dto.PushItem
	pushResults []dto.PushResult
	pullResp    dto.PullResponse
	fullResp    dto.PullResponse
	status      dto.SyncStatus

	pullSince time.Time
	fullCalls int
}

func (f *fakeTransport) Push(_ context.Context, items []dto.PushItem) ([]dto.PushResult, error) {
	f.pushed = append(f.pushed, items)
	return f.pushResults, nil
}

func (f *fakeTransport) Pull(_ context.Context, since time.Time) (*dto.PullResponse, error) {
	f.pullSince = since
	resp := f.pullResp
	return &resp, nil
}

func (f *fakeTransport) Full(context.Context) (*dto.PullResponse, error) {
	f.fullCalls++
	resp := f.fullResp
	return &resp, nil
}

func (f *fakeTransport) Status(context.Context) (dto.SyncStatus, error) {
	return f.status, nil
}

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"), "owner-1")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newEngine(store *localstore.Store, transport Transport) *Engine {
	return NewEngine(store, transport, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func enqueueMerchant(t *testing.T, store *localstore.Store, id, name string) {
	t.Helper()
	data, err := json.Marshal(domain.Merchant{ID: id, Name: name})
	require.NoError(t, err)
	require.NoError(t, store.Enqueue(dto.PushItem{
		EntityType: dto.EntityMerchant, EntityID: id, Operation: dto.OpCreate, Data: data,
	}))
}

func TestSync_DrainsQueueAndRecordsServerIDs(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.SetLastSyncAt(time.Now().Add(-time.Hour)))
	enqueueMerchant(t, store, "m1", "Continente")

	transport := &fakeTransport{
		pushResults: []dto.PushResult{{EntityID: "m1", Success: true, ServerID: "srv-1"}},
		pullResp:    dto.PullResponse{SyncTimestamp: time.Now().UTC()},
	}
	report, err := newEngine(store, transport).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Pushed)
	assert.Empty(t, report.Failed)
	require.Len(t, transport.pushed, 1)

	pending, err := store.PendingOps()
	require.NoError(t, err)
	assert.Empty(t, pending)

	ids, err := store.ServerIDs()
	require.NoError(t, err)
	assert.Equal(t, "srv-1", ids["merchant/m1"])
}

func TestSync_RejectedItemsAreDroppedAndReported(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.SetLastSyncAt(time.Now().Add(-time.Hour)))
	enqueueMerchant(t, store, "m1", "Continente")
	enqueueMerchant(t, store, "m2", "Pingo Doce")

	transport := &fakeTransport{
		pushResults: []dto.PushResult{
			{EntityID: "m1", Success: false, Error: "malformed payload"},
			{EntityID: "m2", Success: true, ServerID: "srv-2"},
		},
		pullResp: dto.PullResponse{SyncTimestamp: time.Now().UTC()},
	}
	report, err := newEngine(store, transport).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Pushed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "m1", report.Failed[0].EntityID)

	// rejected items do not linger in the queue
	pending, err := store.PendingOps()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSync_FirstRunBootstrapsFromFull(t *testing.T) {
	store := openStore(t)
	stamp := time.Now().UTC()
	transport := &fakeTransport{
		fullResp: dto.PullResponse{
			Categories: []dto.SyncedCategory{
				{Category: domain.Category{ID: "c1", Name: "Groceries"}, ServerID: "srv-c1"},
			},
			Merchants: []dto.SyncedMerchant{
				{Merchant: domain.Merchant{ID: "m1", Name: "Continente", IsSolidified: true}, ServerID: "srv-m1"},
			},
			SyncTimestamp: stamp,
		},
	}

	report, err := newEngine(store, transport).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, transport.fullCalls)
	assert.Equal(t, 2, report.Pulled)

	merchants, err := store.Merchants()
	require.NoError(t, err)
	require.Len(t, merchants, 1)
	assert.True(t, merchants[0].IsSolidified)

	last, err := store.LastSyncAt()
	require.NoError(t, err)
	assert.WithinDuration(t, stamp, last, time.Second)
}

func TestSync_PullMergesByID(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.SetMerchants([]domain.Merchant{
		{ID: "m1", Name: "continente", IsSolidified: false},
		{ID: "m2", Name: "Lidl", IsSolidified: true},
	}))
	since := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, store.SetLastSyncAt(since))

	transport := &fakeTransport{
		pullResp: dto.PullResponse{
			Merchants: []dto.SyncedMerchant{
				{Merchant: domain.Merchant{ID: "m1", Name: "Continente", IsSolidified: true}, ServerID: "srv-m1"},
				{Merchant: domain.Merchant{ID: "m3", Name: "Auchan"}, ServerID: "srv-m3"},
			},
			SyncTimestamp: time.Now().UTC(),
		},
	}
	report, err := newEngine(store, transport).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pulled)
	assert.WithinDuration(t, since, transport.pullSince, time.Second)

	merchants, err := store.Merchants()
	require.NoError(t, err)
	require.Len(t, merchants, 3)
	assert.Equal(t, "Continente", merchants[0].Name)
	assert.True(t, merchants[0].IsSolidified)
	assert.Equal(t, "Lidl", merchants[1].Name)
}

func TestSync_NothingQueuedSkipsPush(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.SetLastSyncAt(time.Now().Add(-time.Hour)))

	transport := &fakeTransport{pullResp: dto.PullResponse{SyncTimestamp: time.Now().UTC()}}
	_, err := newEngine(store, transport).Sync(context.Background())
	require.NoError(t, err)
	assert.Empty(t, transport.pushed)
}

func TestStatus_PassesThrough(t *testing.T) {
	store := openStore(t)
	transport := &fakeTransport{status: dto.SyncStatus{
		Collections: map[dto.EntityType]dto.CollectionStatus{dto.EntityReceipt: {Count: 7}},
	}}

	status, err := newEngine(store, transport).Status(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, status.Collections[dto.EntityReceipt].Count)
}
