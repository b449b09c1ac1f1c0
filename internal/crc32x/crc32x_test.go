package crc32x

import (
	"hash/crc32"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, size := range []int{0, 1, 7, 64, 4096} {
		buf := make([]byte, size)
		rng.Read(buf)

		require.Equal(t, crc32.ChecksumIEEE(buf), Checksum(buf))
		require.Equal(t, crc32.ChecksumIEEE(buf), Update(0, buf))
	}
}

func TestUpdateIncremental(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	buf := make([]byte, 1024)
	rng.Read(buf)

	crc := uint32(0)
	for i := 0; i < len(buf); i += 100 {
		end := min(i+100, len(buf))
		crc = Update(crc, buf[i:end])
	}
	require.Equal(t, crc32.ChecksumIEEE(buf), crc)
}

func TestShiftZeroIsIdentity(t *testing.T) {
	for _, crc := range []uint32{0, 1, 0xDEADBEEF, 0xFFFFFFFF} {
		require.Equal(t, crc, Shift(crc, 0))
	}
}

func TestCombineSplitLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for _, size := range []int{1, 2, 7, 513, 4096, 100000} {
		buf := make([]byte, size)
		rng.Read(buf)
		whole := crc32.ChecksumIEEE(buf)

		for _, cut := range []int{0, 1, size / 3, size / 2, size - 1, size} {
			a, b := buf[:cut], buf[cut:]
			got := Combine(crc32.ChecksumIEEE(a), crc32.ChecksumIEEE(b), int64(len(b)))
			require.Equal(t, whole, got, "size=%d cut=%d", size, cut)
		}
	}
}

func TestCombineEmptySecondPart(t *testing.T) {
	require.Equal(t, uint32(0xCAFEBABE), Combine(0xCAFEBABE, 0, 0))
}

func TestCombineMultiWayFold(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	buf := make([]byte, 12345)
	rng.Read(buf)

	// Fold five uneven parts the way the combine engine does: the
	// accumulator starts at the CRC of the empty message.
	cuts := []int{0, 100, 101, 5000, 9999, len(buf)}
	acc := uint32(0)
	for i := 1; i < len(cuts); i++ {
		part := buf[cuts[i-1]:cuts[i]]
		acc = Combine(acc, crc32.ChecksumIEEE(part), int64(len(part)))
	}
	require.Equal(t, crc32.ChecksumIEEE(buf), acc)
}

func FuzzCombineSplitLaw(f *testing.F) {
	f.Add([]byte("hello world"), 3)
	f.Add([]byte{}, 0)
	f.Add([]byte{0xFF}, 1)

	f.Fuzz(func(t *testing.T, data []byte, cut int) {
		if len(data) == 0 {
			cut = 0
		} else {
			cut = ((cut % len(data)) + len(data)) % len(data)
		}
		a, b := data[:cut], data[cut:]
		got := Combine(crc32.ChecksumIEEE(a), crc32.ChecksumIEEE(b), int64(len(b)))
		if want := crc32.ChecksumIEEE(data); got != want {
			t.Fatalf("combine mismatch: want %08x, got %08x (len=%d cut=%d)", want, got, len(data), cut)
		}
	})
}
