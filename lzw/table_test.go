package lzw

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codeWidth is the width of the n'th code (0-based) after a clear code,
// assuming the table keeps learning.
func codeWidth(litWidth, n int) uint {
	width := uint(litWidth) + 1
	hi := 1<<litWidth + 1 + n
	for width < maxWidth && hi >= 1<<width {
		width++
	}
	return width
}

func TestCodeWidthHelper(t *testing.T) {
	assert.Equal(t, uint(9), codeWidth(8, 0))
	assert.Equal(t, uint(9), codeWidth(8, 254))
	assert.Equal(t, uint(10), codeWidth(8, 255))
	assert.Equal(t, uint(11), codeWidth(8, 767))
	assert.Equal(t, uint(12), codeWidth(8, 1791))
	assert.Equal(t, uint(12), codeWidth(8, 5000))
	assert.Equal(t, uint(3), codeWidth(2, 0))
	assert.Equal(t, uint(3), codeWidth(2, 2))
	assert.Equal(t, uint(4), codeWidth(2, 3))
}

func TestWidthGrowth(t *testing.T) {
	r, err := NewReader(bytes.NewReader(nil), LSB, 8)
	require.NoError(t, err)

	step := func(code uint16) {
		t.Helper()
		require.True(t, r.step(code))
		r.o = 0
	}

	step(256)
	assert.Equal(t, uint(9), r.width)
	assert.Equal(t, uint16(257), r.hi)

	boundaries := []struct {
		codes int
		width uint
		hi    uint16
	}{
		{codes: 255, width: 10, hi: 512},
		{codes: 255 + 512, width: 11, hi: 1024},
		{codes: 255 + 512 + 1024, width: 12, hi: 2048},
	}

	n := 0
	for _, b := range boundaries {
		for n < b.codes-1 {
			step('a')
			n++
		}
		assert.Equal(t, b.width-1, r.width, "just before %d codes", b.codes)

		step('a')
		n++
		assert.Equal(t, b.width, r.width, "after %d codes", b.codes)
		assert.Equal(t, b.hi, r.hi)
		assert.Equal(t, uint16(1)<<b.width, r.overflow)
	}

	for n < 3839 {
		step('a')
		n++
	}

	// Full table: width stays put, hi rolls back and nothing chains.
	assert.Equal(t, uint(maxWidth), r.width)
	assert.Equal(t, uint16(tableSize-1), r.hi)
	assert.Equal(t, uint16(invalidCode), r.last)

	step('b')
	assert.Equal(t, uint(maxWidth), r.width)
	assert.Equal(t, uint16(tableSize-1), r.hi)
	assert.Equal(t, uint16(invalidCode), r.last)

	// The last slot was learned before the table filled up.
	require.True(t, r.step(tableSize-1))
	assert.Equal(t, "aa", string(r.output[:r.o]))
	r.o = 0

	step(256)
	assert.Equal(t, uint(9), r.width)
	assert.Equal(t, uint16(257), r.hi)
	assert.Equal(t, uint16(invalidCode), r.last)
}

func TestWidthGrowthStream(t *testing.T) {
	const litCodes = 3900

	for _, order := range []Order{LSB, MSB} {
		t.Run(order.String(), func(t *testing.T) {
			w := &codeWriter{order: order}
			w.write(256, 9)
			for i := 0; i < litCodes; i++ {
				w.write('a', codeWidth(8, i))
			}
			w.write(tableSize-1, maxWidth)
			w.write(256, maxWidth)
			w.write('b', 9)
			w.write(257, 9)

			got, err := decodeAll(t, bytes.NewReader(w.bytes()), order, 8)
			require.NoError(t, err)

			want := append(bytes.Repeat([]byte{'a'}, litCodes+2), 'b')
			assert.Equal(t, want, got)
		})
	}
}

func TestSmallLitWidthGrowth(t *testing.T) {
	// litWidth 2: clear=4, eof=5, codes start at 3 bits.
	w := &codeWriter{order: MSB}
	w.write(4, 3)
	for i := 0; i < 20; i++ {
		w.write(uint16(i%4), codeWidth(2, i))
	}
	w.write(5, codeWidth(2, 20))

	r, err := NewReader(bytes.NewReader(w.bytes()), MSB, 2)
	require.NoError(t, err)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3, 0, 1, 2, 3}, got)
	assert.Equal(t, codeWidth(2, 20), r.width)
}

func TestTableHeadAndUnwind(t *testing.T) {
	var tab table
	const clear = 256

	tab.assign(258, 'a', 'b')
	tab.assign(259, 258, 'c')
	tab.assign(260, 259, 'd')

	assert.Equal(t, uint8('a'), tab.head(260, clear))
	assert.Equal(t, uint8('x'), tab.head('x', clear))

	dst := make([]byte, 8)
	i := tab.unwind(260, clear, dst)
	assert.Equal(t, 4, i)
	assert.Equal(t, "abcd", string(dst[i:]))
}
