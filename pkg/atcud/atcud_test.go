package atcud_test

import (
	"testing"

	"github.com/nuno2msilva/pocket-keeper/pkg/atcud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValid(t *testing.T) {
	t.Parallel()
	assert.True(t, atcud.IsValid("A:500100144*F:20241222"))
	assert.False(t, atcud.IsValid("B:500100144*F:20241222"), "must start with A:")
	assert.False(t, atcud.IsValid("A:500100144"), "needs at least one separator")
	assert.False(t, atcud.IsValid(""))
}

func TestParse_RoundTrip(t *testing.T) {
	t.Parallel()
	d := atcud.Parse("A:500100144*F:20241222*N:7.06*G:FT 2024/12345")
	assert.Equal(t, "500100144", d.NIF)
	assert.Equal(t, "2024-12-22", d.Date)
	assert.Equal(t, "FT 2024/12345", d.ReceiptNumber)
	require.NotNil(t, d.Total)
	assert.InDelta(t, 7.06, *d.Total, 0.001)
}

func TestParse_CustomerNIFPlaceholder(t *testing.T) {
	t.Parallel()
	d := atcud.Parse("A:500100144*B:999999990*F:20241222")
	assert.Empty(t, d.CustomerNIF, "placeholder NIF means no customer NIF provided")

	d = atcud.Parse("A:500100144*B:123456789*F:20241222")
	assert.Equal(t, "123456789", d.CustomerNIF)
}

func TestParse_TimeVariants(t *testing.T) {
	t.Parallel()
	t.Run("time embedded in F", func(t *testing.T) {
		t.Parallel()
		d := atcud.Parse("A:500100144*F:20241222183000*N:7.06")
		assert.Equal(t, "2024-12-22", d.Date)
		assert.Equal(t, "18:30", d.Time)
	})
	t.Run("time in H", func(t *testing.T) {
		t.Parallel()
		d := atcud.Parse("A:500100144*F:20241222*H:1830*N:7.06")
		assert.Equal(t, "18:30", d.Time)
	})
	t.Run("H with seconds", func(t *testing.T) {
		t.Parallel()
		d := atcud.Parse("A:500100144*F:20241222*H:183045*N:7.06")
		assert.Equal(t, "18:30", d.Time)
	})
	t.Run("H as document id", func(t *testing.T) {
		t.Parallel()
		d := atcud.Parse("A:500100144*F:20241222*H:FS 01/224*N:7.06")
		assert.Empty(t, d.Time)
		assert.Equal(t, "FS 01/224", d.ReceiptNumber)
	})
}

func TestParse_TotalVariants(t *testing.T) {
	t.Parallel()
	t.Run("I variant", func(t *testing.T) {
		t.Parallel()
		d := atcud.Parse("A:500100144*F:20241222*I:12.50")
		require.NotNil(t, d.Total)
		assert.InDelta(t, 12.50, *d.Total, 0.001)
	})
	t.Run("O fallback only when no total found", func(t *testing.T) {
		t.Parallel()
		d := atcud.Parse("A:500100144*F:20241222*O:9.99")
		require.NotNil(t, d.Total)
		assert.InDelta(t, 9.99, *d.Total, 0.001)

		d = atcud.Parse("A:500100144*F:20241222*O:9.99*N:7.06")
		require.NotNil(t, d.Total)
		assert.InDelta(t, 7.06, *d.Total, 0.001)
	})
	t.Run("malformed total dropped silently", func(t *testing.T) {
		t.Parallel()
		d := atcud.Parse("A:500100144*F:20241222*N:seven")
		assert.Nil(t, d.Total)
		assert.Equal(t, "2024-12-22", d.Date)
	})
}

func TestParse_InvalidPayloadYieldsEmptyDraft(t *testing.T) {
	t.Parallel()
	assert.Equal(t, atcud.Draft{}, atcud.Parse("garbage"))
	assert.Equal(t, atcud.Draft{}, atcud.Parse(""))
}

func TestParse_UnknownKeysIgnoredAndRepeatsOverwrite(t *testing.T) {
	t.Parallel()
	d := atcud.Parse("A:111111111*Z:whatever*A:500100144*F:20241222")
	assert.Equal(t, "500100144", d.NIF)
	assert.Equal(t, "2024-12-22", d.Date)
}
