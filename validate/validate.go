package validate

import (
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/dselans/unlzw/checkpoint/types"
	"github.com/dselans/unlzw/lzw"
)

// ChecksumLen is the length of a hex-encoded xxhash64 sum.
const ChecksumLen = 16

func Checkpoint(cp *types.Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}

	if cp.Mutex == nil {
		return errors.New("checkpoint mutex is nil")
	}

	if _, err := lzw.ParseOrder(cp.Order); err != nil {
		return errors.Wrap(err, "checkpoint order is invalid")
	}

	if cp.LitWidth < lzw.MinLitWidth || cp.LitWidth > lzw.MaxLitWidth {
		return errors.Errorf("checkpoint lit_width %d is out of range", cp.LitWidth)
	}

	cp.Lock()
	defer cp.Unlock()

	for source, e := range cp.Files {
		if err := FileEntry(e); err != nil {
			return errors.Wrapf(err, "checkpoint entry for '%s' is invalid", source)
		}
	}

	return nil
}

func FileEntry(e *types.FileEntry) error {
	if e == nil {
		return errors.New("entry is nil")
	}

	if e.Dest == "" {
		return errors.New("dest cannot be empty")
	}

	if len(e.Checksum) != ChecksumLen {
		return errors.Errorf("checksum must be %d hex digits", ChecksumLen)
	}

	if _, err := hex.DecodeString(e.Checksum); err != nil {
		return errors.Wrap(err, "checksum is not hex")
	}

	if e.BytesIn < 0 || e.BytesOut < 0 {
		return errors.New("byte counts cannot be negative")
	}

	return nil
}
