package sync

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
)

type fakeUoW struct {
	sync *fakeSyncRepo
}

func (f *fakeUoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return fn(f)
}
func (f *fakeUoW) SyncRepository() (repository.SyncRepository, error) { return f.sync, nil }
func (f *fakeUoW) CommunityRepository() (repository.CommunityRepository, error) {
	return nil, nil
}
func (f *fakeUoW) ProfileRepository() (repository.ProfileRepository, error) { return nil, nil }

// fakeSyncRepo keeps per-collection maps keyed by (owner, naturalKey) and
// mimics the store's first-writer-wins upsert contract.
type fakeSyncRepo struct {
	categories map[string]uuid.UUID // keyed by name
	merchants  map[string]uuid.UUID // keyed by local id
	receipts   map[string]uuid.UUID
	deleted    []string
	listSince  *time.Time
}

func newFakeSyncRepo() *fakeSyncRepo {
	return &fakeSyncRepo{
		categories: map[string]uuid.UUID{},
		merchants:  map[string]uuid.UUID{},
		receipts:   map[string]uuid.UUID{},
	}
}

func (f *fakeSyncRepo) upsert(m map[string]uuid.UUID, key string) (repository.UpsertResult, error) {
	if id, ok := m[key]; ok {
		return repository.UpsertResult{ServerID: id, Created: false}, nil
	}
	id := uuid.New()
	m[key] = id
	return repository.UpsertResult{ServerID: id, Created: true}, nil
}

func (f *fakeSyncRepo) UpsertCategory(_ context.Context, _ uuid.UUID, _ string, c domain.Category) (repository.UpsertResult, error) {
	return f.upsert(f.categories, c.Name)
}
func (f *fakeSyncRepo) UpsertSubcategory(_ context.Context, _ uuid.UUID, localID string, _ domain.Subcategory) (repository.UpsertResult, error) {
	return f.upsert(f.merchants, localID)
}
func (f *fakeSyncRepo) UpsertMerchant(_ context.Context, _ uuid.UUID, localID string, _ domain.Merchant) (repository.UpsertResult, error) {
	return f.upsert(f.merchants, localID)
}
func (f *fakeSyncRepo) UpsertProduct(_ context.Context, _ uuid.UUID, localID string, _ domain.Product) (repository.UpsertResult, error) {
	return f.upsert(f.merchants, localID)
}
func (f *fakeSyncRepo) UpsertReceipt(_ context.Context, _ uuid.UUID, localID string, _ domain.Receipt) (repository.UpsertResult, error) {
	return f.upsert(f.receipts, localID)
}
func (f *fakeSyncRepo) Delete(_ context.Context, _ uuid.UUID, entityType dto.EntityType, localID string) error {
	f.deleted = append(f.deleted, string(entityType)+"/"+localID)
	return nil
}
func (f *fakeSyncRepo) ListCategories(_ context.Context, _ uuid.UUID, since *time.Time) ([]dto.SyncedCategory, error) {
	f.listSince = since
	return []dto.SyncedCategory{{Category: domain.Category{Name: "Groceries"}}}, nil
}
func (f *fakeSyncRepo) ListSubcategories(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedSubcategory, error) {
	return nil, nil
}
func (f *fakeSyncRepo) ListMerchants(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedMerchant, error) {
	return nil, nil
}
func (f *fakeSyncRepo) ListProducts(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedProduct, error) {
	return nil, nil
}
func (f *fakeSyncRepo) ListReceipts(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedReceipt, error) {
	return nil, nil
}
func (f *fakeSyncRepo) Status(context.Context, uuid.UUID) (dto.SyncStatus, error) {
	return dto.SyncStatus{Collections: map[dto.EntityType]dto.CollectionStatus{
		dto.EntityCategory: {Count: 1},
	}}, nil
}

func newService(repo *fakeSyncRepo) *Service {
	return New(&fakeUoW{sync: repo}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestPush_AppliesCreatesAndDeletes(t *testing.T) {
	repo := newFakeSyncRepo()
	svc := newService(repo)
	owner := uuid.New()

	items := []dto.PushItem{
		{EntityType: dto.EntityCategory, EntityID: "c1", Operation: dto.OpCreate,
			Data: mustJSON(t, domain.Category{ID: "c1", Name: "Groceries"})},
		{EntityType: dto.EntityMerchant, EntityID: "m1", Operation: dto.OpCreate,
			Data: mustJSON(t, domain.Merchant{ID: "m1", Name: "Continente"})},
		{EntityType: dto.EntityReceipt, EntityID: "r9", Operation: dto.OpDelete},
	}

	results, err := svc.Push(context.Background(), owner, items)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.True(t, r.Success, "item %d: %s", i, r.Error)
	}
	assert.NotEmpty(t, results[0].ServerID)
	assert.Equal(t, []string{"receipt/r9"}, repo.deleted)
}

func TestPush_FailuresAreCapturedPerItem(t *testing.T) {
	repo := newFakeSyncRepo()
	svc := newService(repo)
	owner := uuid.New()

	items := []dto.PushItem{
		{EntityType: "wallet", EntityID: "w1", Operation: dto.OpCreate, Data: mustJSON(t, map[string]string{})},
		{EntityType: dto.EntityCategory, EntityID: "c1", Operation: dto.OpCreate, Data: json.RawMessage(`{broken`)},
		{EntityType: dto.EntityCategory, EntityID: "c2", Operation: "rename", Data: mustJSON(t, domain.Category{Name: "X"})},
		{EntityType: dto.EntityCategory, EntityID: "c3", Operation: dto.OpCreate,
			Data: mustJSON(t, domain.Category{ID: "c3", Name: "Fuel"})},
	}

	results, err := svc.Push(context.Background(), owner, items)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "unknown entity type")
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "malformed payload")
	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].Error, "unknown operation")

	// a bad item never blocks the items after it
	assert.True(t, results[3].Success)
	assert.NotEmpty(t, results[3].ServerID)
}

func TestPush_UpsertIsFirstWriterWins(t *testing.T) {
	repo := newFakeSyncRepo()
	svc := newService(repo)
	owner := uuid.New()

	item := dto.PushItem{EntityType: dto.EntityMerchant, EntityID: "m1", Operation: dto.OpCreate,
		Data: mustJSON(t, domain.Merchant{ID: "m1", Name: "Pingo Doce"})}

	first, err := svc.Push(context.Background(), owner, []dto.PushItem{item})
	require.NoError(t, err)
	second, err := svc.Push(context.Background(), owner, []dto.PushItem{item})
	require.NoError(t, err)

	assert.True(t, second[0].Success)
	assert.Equal(t, first[0].ServerID, second[0].ServerID)
}

func TestPush_MissingPayloadFails(t *testing.T) {
	svc := newService(newFakeSyncRepo())

	results, err := svc.Push(context.Background(), uuid.New(), []dto.PushItem{
		{EntityType: dto.EntityProduct, EntityID: "p1", Operation: dto.OpUpdate},
	})
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "missing payload")
}

func TestPullAndFull(t *testing.T) {
	repo := newFakeSyncRepo()
	svc := newService(repo)
	owner := uuid.New()
	since := time.Now().Add(-time.Hour)

	resp, err := svc.Pull(context.Background(), owner, since)
	require.NoError(t, err)
	require.Len(t, resp.Categories, 1)
	assert.False(t, resp.SyncTimestamp.IsZero())
	require.NotNil(t, repo.listSince)
	assert.True(t, repo.listSince.Equal(since))

	full, err := svc.Full(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", full.Categories[0].Name)
	assert.Nil(t, repo.listSince)
}

func TestStatus(t *testing.T) {
	svc := newService(newFakeSyncRepo())

	status, err := svc.Status(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 1, status.Collections[dto.EntityCategory].Count)
}
