package extractor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/therootcompany/xz"

	"github.com/dselans/unlzw/lzw"
)

func (e *Extractor) runWorker(
	shutdownCtx context.Context,
	id int,
	jobCh <-chan *Job,
	resCh chan<- *Result,
) {
	llog := e.log.WithFields(logrus.Fields{
		"method": "runWorker",
		"id":     id,
	})

	llog.Debug("start")
	defer llog.Debug("exit")

	// One decoder per worker, reset for every file
	dec := &lzw.Reader{}

	var numHandled int

MAIN:
	for {
		select {
		case <-shutdownCtx.Done():
			llog.Debug("received shutdown signal")
			break MAIN
		case job, open := <-jobCh:
			if !open {
				llog.Debug("job channel closed - exiting worker")
				break MAIN
			}

			llog.Debugf("received job for '%s'", job.Source)

			res := e.extract(shutdownCtx, dec, job)
			res.WorkerID = id

			// The checkpointer drains resCh until every worker is gone
			resCh <- res

			numHandled++
		}
	}

	llog.Debugf("handled '%d' jobs", numHandled)
}

// extract decodes one source. Output goes to a temp file beside the
// destination and is renamed into place only once the stream decoded
// cleanly.
func (e *Extractor) extract(ctx context.Context, dec *lzw.Reader, job *Job) *Result {
	start := time.Now()
	res := &Result{Job: job}

	defer func() {
		res.Took = time.Since(start)
	}()

	f, err := os.Open(job.Source)
	if err != nil {
		res.Err = errors.Wrap(err, "unable to open source file")
		return res
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		res.BytesIn = info.Size()
	}

	bufSize := e.cfg.TOML.Config.BufferSize

	src, closeSrc, err := openContainer(e.cfg.TOML.Source.FileType, bufio.NewReaderSize(f, bufSize))
	if err != nil {
		res.Err = errors.Wrap(err, "unable to open container")
		return res
	}
	defer closeSrc()

	if err := dec.Reset(src, e.order, e.cfg.TOML.Source.LitWidth); err != nil {
		res.Err = errors.Wrap(err, "unable to create decoder")
		return res
	}
	defer dec.Close()

	h := xxhash.New()
	in := &contextReader{ctx: ctx, r: dec}

	if e.cfg.CLI.DryRun {
		res.BytesOut, res.Err = copyDecoded(h, in, bufSize)
	} else {
		res.BytesOut, res.Err = e.writeOutput(job.Dest, h, in, bufSize)
	}

	if res.Err != nil {
		return res
	}

	res.Checksum = fmt.Sprintf("%016x", h.Sum64())

	return res
}

func copyDecoded(w io.Writer, r io.Reader, bufSize int) (int64, error) {
	bw := bufio.NewWriterSize(w, bufSize)

	n, err := io.Copy(bw, r)
	if err != nil {
		return n, errors.Wrap(err, "unable to decode")
	}

	if err := bw.Flush(); err != nil {
		return n, errors.Wrap(err, "unable to flush output")
	}

	return n, nil
}

func (e *Extractor) writeOutput(dest string, h io.Writer, r io.Reader, bufSize int) (int64, error) {
	dir := filepath.Dir(dest)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, errors.Wrapf(err, "unable to create destination dir '%s'", dir)
	}

	if !e.cfg.TOML.Destination.Overwrite {
		if _, err := os.Stat(dest); err == nil {
			return 0, errors.Errorf("destination '%s' already exists", dest)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return 0, errors.Wrap(err, "unable to create temp output file")
	}

	n, err := copyDecoded(io.MultiWriter(tmp, h), r, bufSize)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return n, err
	}

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return n, errors.Wrap(err, "unable to set output file mode")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return n, errors.Wrap(err, "unable to close temp output file")
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return n, errors.Wrap(err, "unable to move output into place")
	}

	return n, nil
}

// openContainer unwraps the configured outer format. The returned reader is
// what the LZW decoder pulls its bytes from.
func openContainer(fileType string, r *bufio.Reader) (io.Reader, func() error, error) {
	nop := func() error { return nil }

	switch fileType {
	case "plain":
		return r, nop, nil
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unable to create gzip reader")
		}
		return gz, gz.Close, nil
	case "xz":
		xr, err := xz.NewReader(r, xz.DefaultDictMax)
		if err != nil {
			return nil, nil, errors.Wrap(err, "unable to create xz reader")
		}
		return xr, nop, nil
	default:
		return nil, nil, errors.Errorf("unsupported source file type '%s'", fileType)
	}
}

// contextReader stops a copy between reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
