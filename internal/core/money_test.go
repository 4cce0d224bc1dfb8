package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true},
		{"-12.345", "-12.35", true},
		{" 2.50 ", "2.50", true},
		{"0", "0.00", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			require.Error(t, err, "%q", tc.in)
			assert.True(t, errors.Is(err, ErrInvalidArgument), "%q should be an invalid argument", tc.in)
			continue
		}
		require.NoError(t, err, "%q", tc.in)
		assert.Equal(t, tc.out, got.StringFixed(2), "%q", tc.in)
	}
}

func TestCentsRoundTrip(t *testing.T) {
	for _, s := range []string{"0.01", "450.00", "-19.99", "12345.67"} {
		d := decimal.RequireFromString(s)
		assert.True(t, FromCents(ToCents(d)).Equal(d), s)
	}
	assert.Equal(t, int64(101), ToCents(decimal.RequireFromString("1.005")))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.30 CAD", FormatAmount(decimal.RequireFromString("12.3"), "CAD"))
	assert.Equal(t, "-4.00", FormatAmount(decimal.NewFromInt(-4), ""))
}

func TestCheckCents(t *testing.T) {
	for _, s := range []string{"0", "-19.99", "92233720368547758.07", "-92233720368547758.08"} {
		assert.NoError(t, CheckCents(decimal.RequireFromString(s)), s)
	}
	for _, s := range []string{"92233720368547758.08", "-92233720368547758.09", "100000000000000000"} {
		err := CheckCents(decimal.RequireFromString(s))
		assert.ErrorIs(t, err, ErrAmountOutOfRange, s)
		assert.ErrorIs(t, err, ErrInvalidArgument, s)
	}
}
