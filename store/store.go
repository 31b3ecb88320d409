// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store persists raw activity records as a directory of files,
// one per contiguous run of minutes, named by the run's start.
//
// A Store is not safe for concurrent use and a directory must not be
// shared by more than one Store.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kortschak/miband/activity"
	"github.com/kortschak/miband/instant"
	"github.com/kortschak/miband/internal/logutil"
	"github.com/kortschak/miband/internal/observability"
)

const (
	// DefaultSuffix is the default file name suffix.
	DefaultSuffix = ".bin"
	// DefaultMaxFileMinutes is the default per-file length bound.
	DefaultMaxFileMinutes = 24 * 60

	nameLayout = "2006-01-02-15-04"
)

// Store is a directory of activity files.
type Store struct {
	dir    string
	suffix string
	max    int
	log    logrus.FieldLogger
}

// Option configures a Store.
type Option func(*Store)

// WithSuffix sets the file name suffix.
func WithSuffix(s string) Option { return func(st *Store) { st.suffix = s } }

// WithMaxFileMinutes sets the number of minutes a file may hold. Zero
// removes the bound.
func WithMaxFileMinutes(n int) Option { return func(st *Store) { st.max = n } }

// WithLogger sets the store's logger.
func WithLogger(l logrus.FieldLogger) Option { return func(st *Store) { st.log = l } }

// Open returns a Store in dir, creating the directory if needed.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:    dir,
		suffix: DefaultSuffix,
		max:    DefaultMaxFileMinutes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.max < 0 {
		return nil, fmt.Errorf("invalid max file minutes: %d", s.max)
	}
	s.log = logutil.OrDiscard(s.log)
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return s, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Segment describes a stored file.
type Segment struct {
	Name    string
	Start   instant.Instant
	Minutes int
}

// Next returns the minute following the segment.
func (g Segment) Next() instant.Instant { return g.Start.AddMinutes(g.Minutes) }

func (s *Store) name(start instant.Instant) string {
	return start.UTC().Format(nameLayout) + s.suffix
}

// Chunks returns the stored segments in ascending order of start.
// Files whose names do not parse are ignored.
func (s *Store) Chunks() ([]Segment, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), s.suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	segs := make([]Segment, 0, len(names))
	for _, name := range names {
		t, err := time.Parse(nameLayout, strings.TrimSuffix(name, s.suffix))
		if err != nil {
			continue
		}
		fi, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", name, err)
		}
		if fi.Size()%activity.RecordSize != 0 {
			s.log.WithFields(logrus.Fields{
				"file": name,
				"size": fi.Size(),
			}).Warn("store file is not a whole number of records")
		}
		segs = append(segs, Segment{
			Name:    name,
			Start:   instant.New(t, 0),
			Minutes: int(fi.Size() / activity.RecordSize),
		})
	}
	return segs, nil
}

// Next returns the end of the latest stored data. It reports false if
// the store is empty.
func (s *Store) Next() (instant.Instant, bool, error) {
	segs, err := s.Chunks()
	if err != nil {
		return instant.Instant{}, false, err
	}
	var (
		next instant.Instant
		ok   bool
	)
	for _, g := range segs {
		if g.Minutes == 0 {
			continue
		}
		if n := g.Next(); !ok || n.After(next) {
			next, ok = n, true
		}
	}
	return next, ok, nil
}

// interval is a half-open minute range relative to a chunk start.
type interval struct{ lo, hi int }

// Save stores the minutes of c that are not already held by the store
// and returns the number of minutes written. Each uncovered run is
// appended to the file ending at its start if the file stays within the
// file length bound, and is otherwise written to new files.
func (s *Store) Save(c activity.Chunk) (int, error) {
	if len(c.Data)%activity.RecordSize != 0 {
		return 0, fmt.Errorf("chunk at %s has partial record: %d bytes", c.Start, len(c.Data))
	}
	start := c.Start.Truncate(time.Minute)
	minutes := len(c.Data) / activity.RecordSize
	if minutes == 0 {
		return 0, nil
	}
	segs, err := s.Chunks()
	if err != nil {
		return 0, err
	}

	gaps := []interval{{0, minutes}}
	for _, g := range segs {
		lo := g.Start.Sub(start)
		gaps = subtract(gaps, interval{lo, lo + g.Minutes})
	}

	var written int
	for _, gap := range gaps {
		n, err := s.saveGap(segs, start, gap, c.Data[gap.lo*activity.RecordSize:gap.hi*activity.RecordSize])
		written += n
		if err != nil {
			return written, err
		}
	}
	if written != 0 {
		observability.RecordStored(written * activity.RecordSize)
		if next, ok, err := s.Next(); err == nil && ok {
			observability.RecordSynced(next.UTC())
		}
	}
	s.log.WithFields(logrus.Fields{
		"start":   start,
		"minutes": minutes,
		"written": written,
		"gaps":    len(gaps),
	}).Debug("saved chunk")
	return written, nil
}

func (s *Store) saveGap(segs []Segment, start instant.Instant, gap interval, data []byte) (int, error) {
	at := start.AddMinutes(gap.lo)
	n := gap.hi - gap.lo
	for _, g := range segs {
		if g.Minutes == 0 || !g.Next().UTC().Equal(at.UTC()) {
			continue
		}
		if s.max != 0 && g.Minutes+n > s.max {
			break
		}
		err := s.appendFile(g.Name, data)
		if err != nil {
			return 0, err
		}
		return n, nil
	}

	var written int
	for len(data) != 0 {
		size := len(data)
		if s.max != 0 {
			size = min(size, s.max*activity.RecordSize)
		}
		err := s.writeFile(s.name(at), data[:size])
		if err != nil {
			return written, err
		}
		m := size / activity.RecordSize
		written += m
		at = at.AddMinutes(m)
		data = data[size:]
	}
	return written, nil
}

// subtract removes cut from each interval in set.
func subtract(set []interval, cut interval) []interval {
	if cut.hi <= cut.lo {
		return set
	}
	out := set[:0:0]
	for _, iv := range set {
		if cut.hi <= iv.lo || cut.lo >= iv.hi {
			out = append(out, iv)
			continue
		}
		if cut.lo > iv.lo {
			out = append(out, interval{iv.lo, cut.lo})
		}
		if cut.hi < iv.hi {
			out = append(out, interval{cut.hi, iv.hi})
		}
	}
	return out
}

// appendFile replaces name with its contents followed by data.
func (s *Store) appendFile(name string, data []byte) error {
	old, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	old = old[:len(old)/activity.RecordSize*activity.RecordSize]
	return s.writeFile(name, append(old, data...))
}

// writeFile atomically replaces name with data.
func (s *Store) writeFile(name string, data []byte) error {
	f, err := os.CreateTemp(s.dir, ".tmp-"+name+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	err = errors.Join(err, f.Close())
	if err == nil {
		err = os.Rename(f.Name(), filepath.Join(s.dir, name))
	}
	if err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", name, err), os.Remove(f.Name()))
	}
	return nil
}

// ReadRange returns minutes records from start. Minutes that are not
// stored are zero.
func (s *Store) ReadRange(start instant.Instant, minutes int) ([]byte, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("invalid range length: %d", minutes)
	}
	start = start.Truncate(time.Minute)
	buf := make([]byte, minutes*activity.RecordSize)
	segs, err := s.Chunks()
	if err != nil {
		return nil, err
	}
	end := start.AddMinutes(minutes)
	for _, g := range segs {
		if !g.Start.Before(end) || !g.Next().After(start) {
			continue
		}
		src, err := os.ReadFile(filepath.Join(s.dir, g.Name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", g.Name, err)
		}
		pos := start.Sub(g.Start)
		lo := max(pos, 0)
		hi := min(pos+minutes, len(src)/activity.RecordSize)
		if hi <= lo {
			continue
		}
		copy(buf[max(-pos, 0)*activity.RecordSize:], src[lo*activity.RecordSize:hi*activity.RecordSize])
	}
	return buf, nil
}

// ReadRecords decodes the records of a range. If skipEmpty is true,
// minutes without a record are omitted.
func (s *Store) ReadRecords(start instant.Instant, minutes int, skipEmpty bool) ([]*activity.Sample, error) {
	raw, err := s.ReadRange(start, minutes)
	if err != nil {
		return nil, err
	}
	start = start.Truncate(time.Minute)
	samples := activity.Decode(raw, &start, activity.DefaultFields)
	if !skipEmpty {
		return samples, nil
	}
	out := samples[:0]
	for _, m := range samples {
		if m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// SaveAll reduces chunks and saves the result, returning the number of
// minutes written.
func (s *Store) SaveAll(chunks []activity.Chunk) (int, error) {
	var written int
	for _, c := range Reduce(chunks) {
		n, err := s.Save(c)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Reduce merges chunks that abut or overlap their predecessor into a
// single chunk. Chunks must be ordered by start. Overlapping minutes are
// taken from the earlier chunk. The input is not modified.
func Reduce(chunks []activity.Chunk) []activity.Chunk {
	var out []activity.Chunk
	for _, c := range chunks {
		if len(out) == 0 {
			out = append(out, cloneChunk(c))
			continue
		}
		last := &out[len(out)-1]
		if last.Next.Before(c.Start) {
			out = append(out, cloneChunk(c))
			continue
		}
		overlap := last.Next.Sub(c.Start)
		if overlap >= c.Minutes {
			continue
		}
		last.Data = append(last.Data, c.Data[overlap*activity.RecordSize:]...)
		last.Minutes += c.Minutes - overlap
		last.Next = c.Next
	}
	return out
}

func cloneChunk(c activity.Chunk) activity.Chunk {
	c.Data = append([]byte(nil), c.Data...)
	return c
}
