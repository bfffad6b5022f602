// Package memory is an in-process snapshot and report store.
package memory

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cdc/internal/core"
	"cdc/internal/storage"
)

type Store struct {
	mu        sync.Mutex
	snapshots map[string]core.Snapshot
	reports   map[string]cachedReport
	now       func() time.Time
}

type cachedReport struct {
	oldDate, newDate string
	body             []byte
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		snapshots: make(map[string]core.Snapshot),
		reports:   make(map[string]cachedReport),
		now:       time.Now,
	}
}

// NewFromDir seeds the store with every file in base named after its
// snapshot date ("2025-04-01.csv", "2025-05-01.xlsx"). Other files are ignored.
func NewFromDir(base string) *Store {
	s := New()
	entries, err := os.ReadDir(base)
	if err != nil {
		return s
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		d, err := core.ParseDate(strings.TrimSuffix(name, filepath.Ext(name)))
		if err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(base, name))
		if err != nil || len(content) == 0 {
			continue
		}
		s.snapshots[d.String()] = core.Snapshot{Date: d, Filename: name, Content: content, UploadedAt: s.now().UTC()}
	}
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) GetSnapshot(_ context.Context, date string) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[date]
	if !ok {
		return core.Snapshot{}, storage.ErrNotFound
	}
	snap.Content = append([]byte(nil), snap.Content...)
	return snap, nil
}

func (s *Store) PutSnapshot(_ context.Context, snap core.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if snap.UploadedAt.IsZero() {
		snap.UploadedAt = s.now().UTC()
	}
	snap.Content = append([]byte(nil), snap.Content...)

	s.mu.Lock()
	defer s.mu.Unlock()
	date := snap.Date.String()
	s.snapshots[date] = snap
	s.invalidateLocked(date)
	return nil
}

func (s *Store) DeleteSnapshot(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[date]; !ok {
		return storage.ErrNotFound
	}
	delete(s.snapshots, date)
	s.invalidateLocked(date)
	return nil
}

func (s *Store) ListDates(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.snapshots))
	for d := range s.snapshots {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) GetCachedReport(_ context.Context, oldDate, newDate string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[storage.ReportKey(oldDate, newDate)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), r.body...), nil
}

func (s *Store) PutCachedReport(_ context.Context, oldDate, newDate string, resultJSON []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[storage.ReportKey(oldDate, newDate)] = cachedReport{
		oldDate: oldDate,
		newDate: newDate,
		body:    append([]byte(nil), resultJSON...),
	}
	return nil
}

func (s *Store) InvalidateCachedReports(_ context.Context, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidateLocked(date)
	return nil
}

func (s *Store) invalidateLocked(date string) {
	for k, r := range s.reports {
		if r.oldDate == date || r.newDate == date {
			delete(s.reports, k)
		}
	}
}
