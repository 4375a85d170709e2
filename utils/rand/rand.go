// Package rand draws uniform indices from crypto/rand, for picking peers
// without a predictable pattern.
package rand

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Uintn returns a uniform random number in [0, n). It fails for n == 0 or
// when the system source cannot be read.
func Uintn(n uint) (uint, error) {
	if n == 0 {
		return 0, fmt.Errorf("upper bound must be positive")
	}
	max := uint64(n - 1)
	mask := uint64(1)<<bits.Len64(max) - 1

	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("could not read system randomness: %w", err)
		}
		// rejection sampling keeps the result uniform
		r := binary.LittleEndian.Uint64(buf[:]) & mask
		if r <= max {
			return uint(r), nil
		}
	}
}

// Samples moves m randomly chosen elements out of n to the positions
// [0, m) through swap, in random order.
func Samples(n uint, m uint, swap func(i, j uint)) error {
	if n < m {
		return fmt.Errorf("sample size %d exceeds population %d", m, n)
	}
	for i := uint(0); i < m; i++ {
		j, err := Uintn(n - i)
		if err != nil {
			return err
		}
		swap(i, i+j)
	}
	return nil
}
