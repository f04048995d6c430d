package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuno2msilva/pocket-keeper/pkg/config"
	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/repository"
	communitysvc "github.com/nuno2msilva/pocket-keeper/pkg/service/community"
	syncsvc "github.com/nuno2msilva/pocket-keeper/pkg/service/sync"
)

type stubUoW struct{}

func (stubUoW) Do(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	return fn(stubUoW{})
}
func (stubUoW) SyncRepository() (repository.SyncRepository, error) { return stubSyncRepo{}, nil }
func (stubUoW) CommunityRepository() (repository.CommunityRepository, error) {
	return stubCommunityRepo{}, nil
}
func (stubUoW) ProfileRepository() (repository.ProfileRepository, error) {
	return stubProfileRepo{}, nil
}

type stubSyncRepo struct{}

func (stubSyncRepo) UpsertCategory(context.Context, uuid.UUID, string, domain.Category) (repository.UpsertResult, error) {
	return repository.UpsertResult{ServerID: uuid.New(), Created: true}, nil
}
func (stubSyncRepo) UpsertSubcategory(context.Context, uuid.UUID, string, domain.Subcategory) (repository.UpsertResult, error) {
	return repository.UpsertResult{ServerID: uuid.New(), Created: true}, nil
}
func (stubSyncRepo) UpsertMerchant(context.Context, uuid.UUID, string, domain.Merchant) (repository.UpsertResult, error) {
	return repository.UpsertResult{ServerID: uuid.New(), Created: true}, nil
}
func (stubSyncRepo) UpsertProduct(context.Context, uuid.UUID, string, domain.Product) (repository.UpsertResult, error) {
	return repository.UpsertResult{ServerID: uuid.New(), Created: true}, nil
}
func (stubSyncRepo) UpsertReceipt(context.Context, uuid.UUID, string, domain.Receipt) (repository.UpsertResult, error) {
	return repository.UpsertResult{ServerID: uuid.New(), Created: true}, nil
}
func (stubSyncRepo) Delete(context.Context, uuid.UUID, dto.EntityType, string) error { return nil }
func (stubSyncRepo) ListCategories(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedCategory, error) {
	return []dto.SyncedCategory{{Category: domain.Category{ID: "c1", Name: "Groceries"}, ServerID: uuid.NewString()}}, nil
}
func (stubSyncRepo) ListSubcategories(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedSubcategory, error) {
	return nil, nil
}
func (stubSyncRepo) ListMerchants(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedMerchant, error) {
	return nil, nil
}
func (stubSyncRepo) ListProducts(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedProduct, error) {
	return nil, nil
}
func (stubSyncRepo) ListReceipts(context.Context, uuid.UUID, *time.Time) ([]dto.SyncedReceipt, error) {
	return nil, nil
}
func (stubSyncRepo) Status(context.Context, uuid.UUID) (dto.SyncStatus, error) {
	return dto.SyncStatus{Collections: map[dto.EntityType]dto.CollectionStatus{dto.EntityCategory: {Count: 1}}}, nil
}

type stubCommunityRepo struct{}

func (stubCommunityRepo) UpsertProduct(_ context.Context, c dto.Contribution, increment int) (domain.CommunityProduct, error) {
	return domain.CommunityProduct{ID: uuid.NewString(), Name: c.Name, TrustScore: increment, ContributionCount: 1}, nil
}
func (stubCommunityRepo) UpsertMerchant(_ context.Context, c dto.Contribution, increment int) (domain.CommunityMerchant, error) {
	return domain.CommunityMerchant{ID: uuid.NewString(), Name: c.Name, TrustScore: increment, ContributionCount: 1}, nil
}
func (stubCommunityRepo) ListSolidifiedProducts(context.Context, uuid.UUID) ([]domain.Product, error) {
	return nil, nil
}
func (stubCommunityRepo) ListSolidifiedMerchants(context.Context, uuid.UUID) ([]domain.Merchant, error) {
	return nil, nil
}
func (stubCommunityRepo) EligibleProducts(context.Context, uuid.UUID, int, int) ([]domain.CommunityProduct, error) {
	return nil, nil
}
func (stubCommunityRepo) EligibleMerchants(context.Context, uuid.UUID, int, int) ([]domain.CommunityMerchant, error) {
	return nil, nil
}
func (stubCommunityRepo) ProductByBarcode(context.Context, string) (*domain.CommunityProduct, error) {
	return nil, nil
}
func (stubCommunityRepo) MerchantByNIF(context.Context, string) (*domain.CommunityMerchant, error) {
	return nil, nil
}
func (stubCommunityRepo) TopProducts(context.Context, int) ([]domain.CommunityProduct, error) {
	return []domain.CommunityProduct{{ID: "cp1", Name: "Milk 1L", TrustScore: 90}}, nil
}
func (stubCommunityRepo) TopMerchants(context.Context, int) ([]domain.CommunityMerchant, error) {
	return nil, nil
}

type stubProfileRepo struct{}

func (stubProfileRepo) Get(context.Context, uuid.UUID) (*domain.Profile, error) {
	return &domain.Profile{ID: uuid.NewString(), CommunityEnabled: true}, nil
}

func testApp() (*fiber.App, *config.App) {
	cfg := &config.App{
		Jwt: config.Jwt{Secret: "test-secret", Expiry: time.Hour},
		Community: config.Community{
			MinTrustScore: 50, ProductPullLimit: 100, MerchantPullLimit: 50,
			SearchLimit: 8, ContributeIncrement: 5, BulkIncrement: 2,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	syncService := syncsvc.New(stubUoW{}, logger)
	communityService := communitysvc.New(stubUoW{}, cfg.Community, logger)
	return NewApp(cfg, syncService, communityService), cfg
}

func authHeader(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doRequest(t *testing.T, app *fiber.App, method, path, auth string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestSyncRoutes_RequireAuth(t *testing.T) {
	app, _ := testApp()

	for _, path := range []string{"/api/v1/sync/full", "/api/v1/sync/status", "/api/v1/community/pull"} {
		resp := doRequest(t, app, http.MethodGet, path, "", nil)
		assert.NotEqual(t, fiber.StatusOK, resp.StatusCode, path)
	}
}

func TestPush_ReturnsPerItemResults(t *testing.T) {
	app, cfg := testApp()

	payload, err := json.Marshal(domain.Category{ID: "c1", Name: "Groceries"})
	require.NoError(t, err)
	body := PushRequest{Items: []dto.PushItem{
		{EntityType: dto.EntityCategory, EntityID: "c1", Operation: dto.OpCreate, Data: payload},
		{EntityType: "wallet", EntityID: "w1", Operation: dto.OpCreate, Data: payload},
	}}

	resp := doRequest(t, app, http.MethodPost, "/api/v1/sync/push", authHeader(t, cfg.Jwt.Secret), body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var results []dto.PushResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
}

func TestPull_RequiresSinceParameter(t *testing.T) {
	app, cfg := testApp()

	resp := doRequest(t, app, http.MethodGet, "/api/v1/sync/pull", authHeader(t, cfg.Jwt.Secret), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	since := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	resp = doRequest(t, app, http.MethodGet, "/api/v1/sync/pull?since="+since, authHeader(t, cfg.Jwt.Secret), nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestFullSync_ReturnsSnapshot(t *testing.T) {
	app, cfg := testApp()

	resp := doRequest(t, app, http.MethodGet, "/api/v1/sync/full", authHeader(t, cfg.Jwt.Secret), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var snapshot dto.PullResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Len(t, snapshot.Categories, 1)
	assert.Equal(t, "Groceries", snapshot.Categories[0].Name)
}

func TestContribute_CreatesDirectoryRow(t *testing.T) {
	app, cfg := testApp()

	resp := doRequest(t, app, http.MethodPost, "/api/v1/community/contribute", authHeader(t, cfg.Jwt.Secret),
		dto.Contribution{Kind: dto.ContributeProduct, Name: "Milk 1L"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var result dto.CommunitySearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Products, 1)
	assert.Equal(t, 5, result.Products[0].TrustScore)
}

func TestCommunitySearch_ValidatesKind(t *testing.T) {
	app, cfg := testApp()

	resp := doRequest(t, app, http.MethodGet, "/api/v1/community/search?kind=wallet&q=milk", authHeader(t, cfg.Jwt.Secret), nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/v1/community/search?kind=product&q=mlk", authHeader(t, cfg.Jwt.Secret), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.CommunitySearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Products, 1)
}
