// Package store holds the ordered in-memory collection of photo
// records and owns every mutation on it.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rmaffei/rotafoto/internal/errors"
	"github.com/rmaffei/rotafoto/internal/models"
)

// timeNow is swapped in tests to pin the overdue cutoff.
var timeNow = time.Now

// Store is the single owner of the record list. All mutations are
// serialized behind the mutex, so exporters can read a consistent
// snapshot even if a caller ignores the UI-level one-export-at-a-time
// contract.
type Store struct {
	mu      sync.RWMutex
	records []*models.PhotoRecord
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Patch carries the user-editable fields of an update. Nil fields are
// left untouched.
type Patch struct {
	Status         *models.Status
	Description    *string
	PredictionDate *string
}

// Append adds records to the end of the store, keeping the indices the
// caller assigned (a batch upload computes them from the store length
// it observed, so Append must not renumber).
func (s *Store) Append(recs ...*models.PhotoRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recs...)
}

// ReplaceAll swaps the whole record list, installing the given records
// verbatim. Used by the backup import path.
func (s *Store) ReplaceAll(recs []*models.PhotoRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = recs
}

// Update merges the patch into the record with the given index. When
// the patch touches the prediction date the overdue rule runs before
// the change is persisted: a non-Done record whose prediction date is
// in the past becomes Overdue.
func (s *Store) Update(index int, p Patch) (*models.PhotoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.find(index)
	if rec == nil {
		return nil, errors.New(errors.ErrRecordNotFound, fmt.Sprintf("no record with index %d", index))
	}

	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, errors.New(errors.ErrInvalid, fmt.Sprintf("invalid status %q", *p.Status))
		}
		rec.Status = *p.Status
	}
	if p.Description != nil {
		rec.Description = *p.Description
	}
	if p.PredictionDate != nil {
		if _, err := time.Parse(models.PredictionDateLayout, *p.PredictionDate); err != nil {
			return nil, errors.Wrap(errors.ErrInvalid, "invalid prediction date", err)
		}
		rec.PredictionDate = *p.PredictionDate
		rec.Status = overdueStatus(rec)
	}

	return rec.Clone(), nil
}

// Remove deletes the record with the given index and reassigns every
// remaining record's index to its positional order, keeping the range
// dense and zero-based.
func (s *Store) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := -1
	for i, rec := range s.records {
		if rec.Index == index {
			at = i
			break
		}
	}
	if at == -1 {
		return errors.New(errors.ErrRecordNotFound, fmt.Sprintf("no record with index %d", index))
	}

	s.records = append(s.records[:at], s.records[at+1:]...)
	for i, rec := range s.records {
		rec.Index = i
	}
	return nil
}

// SortedView returns the records ordered for display and export:
// overdue first, then pending, then done, stable within each group.
// The returned slice is a copy; the store order is unaffected.
func (s *Store) SortedView() []*models.PhotoRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := make([]*models.PhotoRecord, len(s.records))
	copy(view, s.records)
	sort.SliceStable(view, func(i, j int) bool {
		return view[i].Status.Rank() < view[j].Status.Rank()
	})
	return view
}

// Records returns a copy of the record list in store order.
func (s *Store) Records() []*models.PhotoRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PhotoRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// find locates a record by its assigned index. Caller holds the lock.
func (s *Store) find(index int) *models.PhotoRecord {
	for _, rec := range s.records {
		if rec.Index == index {
			return rec
		}
	}
	return nil
}

// overdueStatus applies the one-way overdue rule: Done never moves and
// nothing transitions back automatically.
func overdueStatus(rec *models.PhotoRecord) models.Status {
	if rec.Status == models.StatusDone {
		return rec.Status
	}
	prediction, ok := rec.PredictionTime()
	if !ok {
		return rec.Status
	}
	today := timeNow()
	cutoff := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, prediction.Location())
	if prediction.Before(cutoff) {
		return models.StatusOverdue
	}
	return rec.Status
}
