package checkpoint

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/unlzw/checkpoint/types"
)

// Load reads checkpointFile, or creates a fresh checkpoint when it does not
// exist. A checkpoint written for a different bit order or literal width is
// rejected since its recorded outputs would not match a rerun.
func Load(checkpointFile, order string, litWidth int) (*types.Checkpoint, error) {
	startedAt := time.Now()
	logrus.Debugf("checkpoint loading started at '%s'", startedAt)

	defer func() {
		endedAt := time.Now()
		logrus.Debugf("checkpoint loading completed at '%s'", endedAt)
		logrus.Debugf("checkpoint loading took '%s'", endedAt.Sub(startedAt))
	}()

	var createCheckpoint bool

	// Check if checkpoint file exists; if it does not exist - create it,
	// otherwise, try to load it.
	if _, err := os.Stat(checkpointFile); err != nil {
		if os.IsNotExist(err) {
			createCheckpoint = true
		} else {
			return nil, errors.Wrap(err, "unable to stat checkpoint file")
		}
	}

	if createCheckpoint {
		logrus.Debugf("creating checkpoint file '%s'", checkpointFile)
		return create(checkpointFile, order, litWidth)
	}

	logrus.Debugf("loading checkpoint file '%s'", checkpointFile)

	cp, err := load(checkpointFile)
	if err != nil {
		return nil, err
	}

	if cp.Order != order || cp.LitWidth != litWidth {
		return nil, errors.Errorf("checkpoint was written for order '%s' lit_width %d, config has order '%s' lit_width %d",
			cp.Order, cp.LitWidth, order, litWidth)
	}

	return cp, nil
}

func load(checkpointFile string) (*types.Checkpoint, error) {
	data, err := os.ReadFile(checkpointFile)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read checkpoint file")
	}

	cp := &types.Checkpoint{}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal checkpoint file")
	}

	cp.Mutex = &sync.Mutex{}

	if cp.Files == nil {
		cp.Files = make(map[string]*types.FileEntry)
	}

	return cp, nil
}

func create(checkpointFile, order string, litWidth int) (*types.Checkpoint, error) {
	cp := types.New(order, litWidth)

	// Try to write checkpoint file
	if err := cp.Save(checkpointFile); err != nil {
		return nil, errors.Wrap(err, "unable to write checkpoint file")
	}

	return cp, nil
}
