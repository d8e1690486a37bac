package extractor

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/unlzw/checkpoint/types"
)

// runCheckpointer records worker results in the checkpoint and saves it to
// disk at most once per checkpoint interval. It returns once resCh is
// closed, which happens after every worker has exited.
func (e *Extractor) runCheckpointer(resCh <-chan *Result) {
	llog := e.log.WithFields(logrus.Fields{
		"method": "runCheckpointer",
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	for res := range resCh {
		if res.Err != nil {
			e.summary.Failed++
			llog.Errorf("unable to decode '%s' (worker id '%d'): %v", res.Source, res.WorkerID, res.Err)
			continue
		}

		e.summary.Decoded++
		e.summary.BytesIn += res.BytesIn
		e.summary.BytesOut += res.BytesOut

		llog.Debugf("decoded '%s' -> '%s' (%d -> %d bytes, checksum %s) in %s",
			res.Source, res.Dest, res.BytesIn, res.BytesOut, res.Checksum, res.Took)

		e.cp.Record(res.Source, &types.FileEntry{
			Dest:        res.Dest,
			BytesIn:     res.BytesIn,
			BytesOut:    res.BytesOut,
			Checksum:    res.Checksum,
			CompletedAt: time.Now(),
		})

		if err := e.saveCheckpoint(false); err != nil {
			llog.Errorf("error saving checkpoint after '%s': %v", res.Source, err)
		}
	}
}

func (e *Extractor) saveCheckpoint(force bool) error {
	llog := e.log.WithFields(logrus.Fields{
		"method": "saveCheckpoint",
	})

	if !e.persist {
		return nil
	}

	interval := time.Duration(e.cfg.TOML.Config.CheckpointInterval)

	// Skip checkpoint if it's NOT zero/unset AND we haven't passed CheckpointInterval
	if !force && !e.last.IsZero() && e.last.Add(interval).After(time.Now()) {
		llog.Debugf("skipping checkpoint save, last save was %v ago", time.Since(e.last))
		return nil
	}

	llog.Debugf("saving checkpoint to '%s'", e.cfg.TOML.Config.CheckpointFile)

	if err := e.cp.Save(e.cfg.TOML.Config.CheckpointFile); err != nil {
		return errors.Wrap(err, "unable to save checkpoint")
	}

	// Note that a checkpoint save has occurred
	e.last = time.Now()

	return nil
}
