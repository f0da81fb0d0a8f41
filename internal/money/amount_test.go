package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid amounts", func(t *testing.T) {
		for _, s := range []string{"0", "0.01", "1.5", "100", "0.0001"} {
			_, err := Parse(s)
			require.NoError(t, err, "amount %q", s)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		for _, s := range []string{"", "abc", "1.2.3"} {
			_, err := Parse(s)
			assert.Error(t, err, "amount %q", s)
		}
	})

	t.Run("rejects negative", func(t *testing.T) {
		_, err := Parse("-1")
		assert.Error(t, err)
	})
}

func TestFormat(t *testing.T) {
	d, err := Parse("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1.5000", Format(d))

	d, err = Parse("0.00005")
	require.NoError(t, err)
	// Display precision is four fractional digits.
	assert.Equal(t, "0.0001", Format(d))
}

func TestAdd(t *testing.T) {
	sum, err := Add("0.1000", "0.2000")
	require.NoError(t, err)
	assert.Equal(t, "0.3000", sum)

	sum, err = Add("0.0000", "5")
	require.NoError(t, err)
	assert.Equal(t, "5.0000", sum)
}

func TestSubClamped(t *testing.T) {
	t.Run("normal subtraction", func(t *testing.T) {
		got, err := SubClamped("5.0000", "1.2500")
		require.NoError(t, err)
		assert.Equal(t, "3.7500", got)
	})

	t.Run("clamps at zero", func(t *testing.T) {
		got, err := SubClamped("0.0100", "5.0000")
		require.NoError(t, err)
		assert.Equal(t, "0.0000", got)
	})
}

func TestSubtractAddRoundTrip(t *testing.T) {
	// Subtracting then adding the same stake restores the balance exactly at
	// display precision, for any stake not exceeding the balance.
	cases := []struct {
		balance string
		stake   string
	}{
		{"10.5000", "0.0900"},
		{"1", "1"},
		{"0.0100", "0.0100"},
		{"5.1234", "3.9999"},
	}
	for _, tc := range cases {
		t.Run(tc.balance+" minus "+tc.stake, func(t *testing.T) {
			debited, err := SubClamped(tc.balance, tc.stake)
			require.NoError(t, err)
			restored, err := Add(debited, tc.stake)
			require.NoError(t, err)

			want, err := Parse(tc.balance)
			require.NoError(t, err)
			assert.Equal(t, Format(want), restored)
		})
	}
}

func TestWeiRoundTrip(t *testing.T) {
	wei, err := ToWei("1.5")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", wei.String())

	back := FromWei(wei)
	assert.Equal(t, "1.5000", Format(back))

	assert.Equal(t, "0.0000", Format(FromWei(big.NewInt(0))))
}

func TestPoolPercents(t *testing.T) {
	t.Run("empty pools split evenly", func(t *testing.T) {
		p, err := PoolPercents("0", "0")
		require.NoError(t, err)
		assert.Equal(t, 50, p.Yes)
		assert.Equal(t, 50, p.No)
	})

	t.Run("percents always sum to one hundred", func(t *testing.T) {
		p, err := PoolPercents("3.0000", "7.0000")
		require.NoError(t, err)
		assert.Equal(t, 30, p.Yes)
		assert.Equal(t, 70, p.No)
		assert.Equal(t, 100, p.Yes+p.No)
	})

	t.Run("rounding still sums to one hundred", func(t *testing.T) {
		p, err := PoolPercents("1.0000", "2.0000")
		require.NoError(t, err)
		assert.Equal(t, 33, p.Yes)
		assert.Equal(t, 67, p.No)
	})

	t.Run("one sided pool", func(t *testing.T) {
		p, err := PoolPercents("4.2000", "0.0000")
		require.NoError(t, err)
		assert.Equal(t, 100, p.Yes)
		assert.Equal(t, 0, p.No)
	})
}
