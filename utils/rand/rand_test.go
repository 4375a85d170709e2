package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUintn(t *testing.T) {
	_, err := Uintn(0)
	require.Error(t, err)

	r, err := Uintn(1)
	require.NoError(t, err)
	assert.Zero(t, r)

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.UintRange(1, 1<<40).Draw(t, "n")
		r, err := Uintn(n)
		require.NoError(t, err)
		require.Less(t, r, n)
	})
}

func TestSamples(t *testing.T) {
	t.Run("sample larger than population", func(t *testing.T) {
		require.Error(t, Samples(2, 3, func(uint, uint) {}))
	})

	t.Run("picks distinct elements", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			n := rapid.UintRange(0, 50).Draw(t, "n")
			m := rapid.UintRange(0, n).Draw(t, "m")
			items := make([]uint, n)
			for i := range items {
				items[i] = uint(i)
			}
			require.NoError(t, Samples(n, m, func(i, j uint) {
				items[i], items[j] = items[j], items[i]
			}))

			seen := make(map[uint]struct{}, m)
			for _, item := range items[:m] {
				seen[item] = struct{}{}
			}
			require.Len(t, seen, int(m))
			assert.ElementsMatch(t, seqUpTo(n), items)
		})
	})
}

func seqUpTo(n uint) []uint {
	seq := make([]uint, n)
	for i := range seq {
		seq[i] = uint(i)
	}
	return seq
}
