package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMicroToCredits(t *testing.T) {
	assert.Equal(t, "0.000000", MicroToCredits(0))
	assert.Equal(t, "0.000001", MicroToCredits(1))
	assert.Equal(t, "1.000000", MicroToCredits(1_000_000))
	assert.Equal(t, "5.999000", MicroToCredits(5_999_000))
	assert.Equal(t, "123.456789", MicroToCredits(123_456_789))
}

func TestCreditsToMicro(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"10", 10_000_000},
		{"4.0", 4_000_000},
		{"0.001", 1_000},
		{"5.999", 5_999_000},
		{"  2.5 ", 2_500_000},
		{"0.0000019", 1}, // extra precision truncated
	}
	for _, tc := range cases {
		got, err := CreditsToMicro(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestCreditsToMicroRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "-1", "1,5"} {
		_, err := CreditsToMicro(in)
		assert.Error(t, err, in)
	}
}

func TestCreditsToMicroOverflow(t *testing.T) {
	// Largest representable value, one microcredit past it, and a whole
	// number whose expansion leaves uint64 entirely.
	got, err := CreditsToMicro("18446744073709.551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = CreditsToMicro("18446744073709.551616")
	assert.Error(t, err)

	_, err = CreditsToMicro("18446744073709551615")
	assert.Error(t, err)
}
