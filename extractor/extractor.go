package extractor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/unlzw/checkpoint"
	"github.com/dselans/unlzw/checkpoint/types"
	"github.com/dselans/unlzw/config"
	"github.com/dselans/unlzw/lzw"
	"github.com/dselans/unlzw/validate"
)

// Job is one source file to decode.
type Job struct {
	Source string
	Dest   string
}

// Result is what a worker reports back for a Job.
type Result struct {
	*Job

	WorkerID int
	BytesIn  int64
	BytesOut int64
	Checksum string
	Took     time.Duration
	Err      error
}

// Summary totals a Run.
type Summary struct {
	Decoded  int
	Skipped  int
	Failed   int
	BytesIn  int64
	BytesOut int64
}

type Extractor struct {
	cfg   *config.Config
	log   *logrus.Entry
	cp    *types.Checkpoint
	order lzw.Order

	// persist is false when the checkpoint only lives in memory
	persist bool

	// Only touched by the checkpointer goroutine
	last    time.Time
	summary Summary
}

type readerResult struct {
	skipped int
	err     error
}

func New(cfg *config.Config) (*Extractor, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	persist := !cfg.TOML.Config.DisableCheckpointing && !cfg.CLI.DryRun

	cp, err := loadCheckpoint(cfg, persist)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load checkpoint file")
	}

	if err := validate.Checkpoint(cp); err != nil {
		return nil, errors.Wrap(err, "checkpoint failed validation")
	}

	return &Extractor{
		cfg:     cfg,
		cp:      cp,
		order:   cfg.Order(),
		persist: persist,
		log:     logrus.WithField("pkg", "extractor"),
	}, nil
}

func loadCheckpoint(cfg *config.Config, persist bool) (*types.Checkpoint, error) {
	order := cfg.Order().String()
	litWidth := cfg.TOML.Source.LitWidth

	// A fresh checkpoint replaces the old one on the first save
	if !persist || cfg.CLI.DisableResume {
		return types.New(order, litWidth), nil
	}

	return checkpoint.Load(cfg.TOML.Config.CheckpointFile, order, litWidth)
}

// Summary returns the totals of the last Run.
func (e *Extractor) Summary() Summary {
	return e.summary
}

// Run decodes every source matched by the config. It returns once all
// workers have exited, either because the sources ran out or because
// shutdownCtx was cancelled.
func (e *Extractor) Run(shutdownCtx context.Context) error {
	numWorkers := e.cfg.TOML.Config.NumWorkers

	wg := &sync.WaitGroup{}
	jobCh := make(chan *Job, numWorkers)
	resCh := make(chan *Result, numWorkers)
	readerCh := make(chan readerResult, 1)

	e.summary = Summary{}

	// Launch reader
	go func() {
		e.log.Debug("reader start")
		defer e.log.Debug("reader exit")

		skipped, err := e.runReader(shutdownCtx, jobCh)
		readerCh <- readerResult{skipped: skipped, err: err}
	}()

	// Launch workers
	for i := 0; i < numWorkers; i++ {
		i := i
		wg.Add(1)

		go func() {
			e.log.Debugf("worker %d start", i)
			defer e.log.Debugf("worker %d exit", i)
			defer wg.Done()

			e.runWorker(shutdownCtx, i, jobCh, resCh)
		}()
	}

	// Results close once every worker is gone
	go func() {
		wg.Wait()
		close(resCh)
	}()

	e.runCheckpointer(resCh)

	rr := <-readerCh
	e.summary.Skipped = rr.skipped

	if rr.err == nil && shutdownCtx.Err() == nil && e.summary.Failed == 0 {
		e.cp.Complete()
	}

	if err := e.saveCheckpoint(true); err != nil {
		return errors.Wrap(err, "unable to save final checkpoint")
	}

	e.log.Infof("decoded %d file(s), skipped %d, failed %d (%d bytes in, %d bytes out)",
		e.summary.Decoded, e.summary.Skipped, e.summary.Failed, e.summary.BytesIn, e.summary.BytesOut)

	if rr.err != nil {
		return errors.Wrap(rr.err, "error in reader")
	}

	if err := shutdownCtx.Err(); err != nil {
		return errors.Wrap(err, "run interrupted")
	}

	if e.summary.Failed > 0 {
		return errors.Errorf("%d file(s) failed to decode", e.summary.Failed)
	}

	return nil
}
