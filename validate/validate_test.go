package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dselans/unlzw/checkpoint/types"
)

func TestCheckpoint(t *testing.T) {
	assert.Error(t, Checkpoint(nil))
	assert.Error(t, Checkpoint(&types.Checkpoint{Order: "lsb", LitWidth: 8}), "no mutex")

	assert.NoError(t, Checkpoint(types.New("lsb", 8)))
	assert.Error(t, Checkpoint(types.New("sideways", 8)))
	assert.Error(t, Checkpoint(types.New("msb", 9)))

	cp := types.New("msb", 8)
	cp.Record("a.lzw", &types.FileEntry{Dest: "a", Checksum: "0123456789abcdef"})
	assert.NoError(t, Checkpoint(cp))

	cp.Record("b.lzw", &types.FileEntry{Dest: "b", Checksum: "xyz"})
	assert.Error(t, Checkpoint(cp))
}

func TestFileEntry(t *testing.T) {
	cases := map[string]*types.FileEntry{
		"nil":       nil,
		"no dest":   {Checksum: "0123456789abcdef"},
		"short sum": {Dest: "a", Checksum: "0123"},
		"not hex":   {Dest: "a", Checksum: "0123456789abcdeg"},
		"negative":  {Dest: "a", Checksum: "0123456789abcdef", BytesOut: -1},
	}

	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, FileEntry(e))
		})
	}

	assert.NoError(t, FileEntry(&types.FileEntry{Dest: "a", Checksum: "0123456789ABCDEF"}))
}
