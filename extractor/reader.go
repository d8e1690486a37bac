package extractor

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// runReader expands the source patterns and feeds every file that still
// needs decoding to the workers. It always closes jobCh.
func (e *Extractor) runReader(shutdownCtx context.Context, jobCh chan<- *Job) (int, error) {
	llog := e.log.WithFields(logrus.Fields{
		"method": "runReader",
	})

	defer close(jobCh)

	jobs, err := e.plan()
	if err != nil {
		return 0, errors.Wrap(err, "unable to plan jobs")
	}

	llog.Debugf("planned '%d' jobs", len(jobs))

	var numSent, numSkipped int

MAIN:
	for _, job := range jobs {
		if e.alreadyDone(job) {
			llog.Debugf("skipping '%s', already decoded", job.Source)
			numSkipped++
			continue
		}

		select {
		case <-shutdownCtx.Done():
			llog.Debug("received shutdown signal")
			break MAIN
		case jobCh <- job:
			numSent++
		}
	}

	llog.Debugf("sent '%d' jobs", numSent)

	return numSkipped, nil
}

// plan lists every source matched by the configured patterns, sorted and
// deduplicated, with its destination path.
func (e *Extractor) plan() ([]*Job, error) {
	llog := e.log.WithFields(logrus.Fields{
		"method": "plan",
	})

	seen := make(map[string]struct{})
	dests := make(map[string]string)

	var jobs []*Job

	for _, pattern := range e.cfg.TOML.Source.Files {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "unable to expand pattern '%s'", pattern)
		}

		if len(matches) == 0 {
			llog.Warnf("pattern '%s' matched no files", pattern)
			continue
		}

		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)

		for _, source := range matches {
			if _, ok := seen[source]; ok {
				continue
			}
			seen[source] = struct{}{}

			dest := e.destFor(base, source)

			if other, ok := dests[dest]; ok {
				return nil, errors.Errorf("sources '%s' and '%s' both decode to '%s'", other, source, dest)
			}
			dests[dest] = source

			jobs = append(jobs, &Job{Source: source, Dest: dest})
		}
	}

	// An output must never replace a file that is itself being decoded
	for _, job := range jobs {
		if _, ok := seen[job.Dest]; ok {
			return nil, errors.Errorf("source '%s' decodes onto source '%s'", job.Source, job.Dest)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].Source < jobs[j].Source
	})

	return jobs, nil
}

// destFor maps a source to its output path. The suffix is stripped when
// present, otherwise the destination suffix is appended. Without a
// destination dir the output lands next to the source; with one, the
// source's path below the pattern base is kept.
func (e *Extractor) destFor(base, source string) string {
	d := e.cfg.TOML.Destination

	rel, err := filepath.Rel(base, source)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(source)
	}

	if d.StripSuffix != "" && strings.HasSuffix(rel, d.StripSuffix) && len(filepath.Base(rel)) > len(d.StripSuffix) {
		rel = strings.TrimSuffix(rel, d.StripSuffix)
	} else {
		rel += d.Suffix
	}

	if d.Dir == "" {
		return filepath.Join(filepath.Dir(source), filepath.Base(rel))
	}

	return filepath.Join(d.Dir, rel)
}

// alreadyDone reports whether the checkpoint says job was decoded and the
// output it recorded is still there.
func (e *Extractor) alreadyDone(job *Job) bool {
	entry, ok := e.cp.Done(job.Source)
	if !ok || entry.Dest != job.Dest {
		return false
	}

	info, err := os.Stat(job.Dest)
	if err != nil {
		return false
	}

	return info.Size() == entry.BytesOut
}
