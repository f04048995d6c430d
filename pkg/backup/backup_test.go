package backup_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/nuno2msilva/pocket-keeper/pkg/backup"
	"github.com/nuno2msilva/pocket-keeper/pkg/domain"
	"github.com/nuno2msilva/pocket-keeper/pkg/dto"
	"github.com/nuno2msilva/pocket-keeper/pkg/localstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"), "owner-1")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExportImport_RoundTrip(t *testing.T) {
	t.Parallel()
	src := openStore(t)
	require.NoError(t, src.SetCategories([]domain.Category{{ID: "c1", Name: "Groceries"}}))
	require.NoError(t, src.SetMerchants([]domain.Merchant{{ID: "m1", Name: "Continente", IsSolidified: true}}))
	require.NoError(t, src.SetProducts([]domain.Product{{ID: "p1", Name: "Milk 1L"}}))
	require.NoError(t, src.SetReceipts([]domain.Receipt{{ID: "r1", MerchantID: "m1", Date: "2024-12-22", Total: 7.06}}))

	env, err := backup.Export(src)
	require.NoError(t, err)
	assert.Equal(t, dto.BackupVersion, env.Version)
	assert.False(t, env.ExportedAt.IsZero())

	// Envelope survives JSON, as the file on disk would.
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded dto.Backup
	require.NoError(t, json.Unmarshal(raw, &decoded))

	dst := openStore(t)
	require.NoError(t, backup.Import(dst, decoded))

	merchants, err := dst.Merchants()
	require.NoError(t, err)
	require.Len(t, merchants, 1)
	assert.True(t, merchants[0].IsSolidified)

	receipts, err := dst.Receipts()
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.InDelta(t, 7.06, receipts[0].Total, 0.001)
}

func TestImport_RejectsMissingVersion(t *testing.T) {
	t.Parallel()
	dst := openStore(t)
	err := backup.Import(dst, dto.Backup{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestImport_PartialBackupLeavesOtherCollectionsUntouched(t *testing.T) {
	t.Parallel()
	dst := openStore(t)
	require.NoError(t, dst.SetMerchants([]domain.Merchant{{ID: "m1", Name: "Continente"}}))
	require.NoError(t, dst.SetReceipts([]domain.Receipt{{ID: "r1", MerchantID: "m1", Date: "2024-12-22"}}))

	merchants := []domain.Merchant{{ID: "m2", Name: "Pingo Doce"}}
	require.NoError(t, backup.Import(dst, dto.Backup{
		Merchants: &merchants,
		Version:   dto.BackupVersion,
	}))

	got, err := dst.Merchants()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m2", got[0].ID, "included collection replaced")

	receipts, err := dst.Receipts()
	require.NoError(t, err)
	assert.Len(t, receipts, 1, "omitted collection untouched")
}
