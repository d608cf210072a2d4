package provider

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr bool
	}{
		{"39.98", 3998, false},
		{"0", 0, false},
		{"100", 10000, false},
		{"0.1", 10, false},
		{"1999999.99", 199999999, false},
		{"10.005", 0, true},
		{"-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToMinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("39.98")
	s, err := FormatMinorUnits(amount)
	require.NoError(t, err)
	assert.Equal(t, "3998", s)

	back, err := ParseMinorUnits(s)
	require.NoError(t, err)
	assert.True(t, amount.Equal(back))
	assert.True(t, FromMinorUnits(3998).Equal(amount))
}

func TestParseMinorUnits_Invalid(t *testing.T) {
	for _, raw := range []string{"", "abc", "39.98", "-100"} {
		_, err := ParseMinorUnits(raw)
		assert.Error(t, err, raw)
	}
}
