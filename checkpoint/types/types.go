package types

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Checkpoint contains checkpoint info
type Checkpoint struct {
	Order       string                `json:"order"`
	LitWidth    int                   `json:"lit_width"`
	StartedAt   time.Time             `json:"started_at"`
	LastUpdated time.Time             `json:"last_updated"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Files       map[string]*FileEntry `json:"files"`

	*sync.Mutex `json:"-"`
}

// FileEntry describes one source that was decoded in full.
type FileEntry struct {
	Dest        string    `json:"dest"`
	BytesIn     int64     `json:"bytes_in"`
	BytesOut    int64     `json:"bytes_out"`
	Checksum    string    `json:"checksum"` // xxhash64 of the decoded bytes, hex
	CompletedAt time.Time `json:"completed_at"`
}

func New(order string, litWidth int) *Checkpoint {
	now := time.Now()

	return &Checkpoint{
		Order:       order,
		LitWidth:    litWidth,
		StartedAt:   now,
		LastUpdated: now,
		Files:       make(map[string]*FileEntry),
		Mutex:       &sync.Mutex{},
	}
}

// Record marks source as done.
func (cp *Checkpoint) Record(source string, e *FileEntry) {
	cp.Lock()
	defer cp.Unlock()

	if cp.Files == nil {
		cp.Files = make(map[string]*FileEntry)
	}

	cp.Files[source] = e
	cp.LastUpdated = time.Now()
}

// Done returns the entry for source if it was recorded.
func (cp *Checkpoint) Done(source string) (*FileEntry, bool) {
	cp.Lock()
	defer cp.Unlock()

	e, ok := cp.Files[source]
	return e, ok
}

// Complete stamps the checkpoint as finished.
func (cp *Checkpoint) Complete() {
	cp.Lock()
	defer cp.Unlock()

	now := time.Now()
	cp.CompletedAt = &now
	cp.LastUpdated = now
}

func (cp *Checkpoint) Save(checkpointFile string) error {
	cp.Lock()
	defer cp.Unlock()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal checkpoint file")
	}

	// Write to a temp file and rename so a crash never leaves half a checkpoint
	tmp, err := os.CreateTemp(filepath.Dir(checkpointFile), filepath.Base(checkpointFile)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "unable to create temp checkpoint file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to write checkpoint file")
	}

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to set checkpoint file mode")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to close checkpoint file")
	}

	if err := os.Rename(tmp.Name(), checkpointFile); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to move checkpoint file into place")
	}

	return nil
}
