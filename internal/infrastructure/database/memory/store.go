// Package memory is an in-process DocumentStore used by dry runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/turtacn/rxn-reconciler/internal/domain/reaction"
	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

// Store keeps documents as encoded JSON so callers never share memory with
// what is stored, the same as a round trip through the database.
type Store struct {
	mu      sync.RWMutex
	rhea    map[string][]byte
	rheaEC  map[string]string
	enzymes map[string][]byte
	runs    []reaction.RunRecord
}

func NewStore() *Store {
	return &Store{
		rhea:    make(map[string][]byte),
		rheaEC:  make(map[string]string),
		enzymes: make(map[string][]byte),
	}
}

var (
	_ reaction.DocumentStore = (*Store)(nil)
	_ reaction.RunLog        = (*Store)(nil)
)

func (s *Store) UpsertRhea(ctx context.Context, rec *reaction.RheaReactionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode rhea document").WithDetail(rec.RheaID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rhea[rec.RheaID] = doc
	if ec, ok := rec.ECNumber.Get(); ok {
		s.rheaEC[rec.RheaID] = ec
	} else {
		delete(s.rheaEC, rec.RheaID)
	}
	return nil
}

func (s *Store) UpsertEnzyme(ctx context.Context, rec *reaction.ExpasyEnzymeRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode enzyme document").WithDetail(rec.ECNumber)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enzymes[rec.ECNumber] = doc
	return nil
}

func (s *Store) GetRhea(ctx context.Context, rheaID string) (*reaction.RheaReactionRecord, error) {
	s.mu.RLock()
	doc, ok := s.rhea[rheaID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeRheaNotFound, "rhea reaction %s not found", rheaID)
	}
	rec := &reaction.RheaReactionRecord{}
	if err := json.Unmarshal(doc, rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode rhea document").WithDetail(rheaID)
	}
	return rec, nil
}

func (s *Store) GetEnzyme(ctx context.Context, ecnumber string) (*reaction.ExpasyEnzymeRecord, error) {
	s.mu.RLock()
	doc, ok := s.enzymes[ecnumber]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeEnzymeNotFound, "enzyme %s not found", ecnumber)
	}
	rec := &reaction.ExpasyEnzymeRecord{}
	if err := json.Unmarshal(doc, rec); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode enzyme document").WithDetail(ecnumber)
	}
	return rec, nil
}

// ListRheaByEC orders ids numerically, matching the SQL store.
func (s *Store) ListRheaByEC(ctx context.Context, ecnumber string) ([]*reaction.RheaReactionRecord, error) {
	s.mu.RLock()
	var ids []string
	for id, ec := range s.rheaEC {
		if ec == ecnumber {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
	out := make([]*reaction.RheaReactionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetRhea(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, kind reaction.DocumentKind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case reaction.KindRhea:
		return int64(len(s.rhea)), nil
	case reaction.KindExpasy:
		return int64(len(s.enzymes)), nil
	default:
		return 0, errors.Newf(errors.ErrCodeBadRequest, "unknown document kind %q", kind)
	}
}

func (s *Store) RecordRun(ctx context.Context, run reaction.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, pass string, limit int) ([]reaction.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []reaction.RunRecord
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if pass == "" || s.runs[i].Pass == pass {
			out = append(out, s.runs[i])
		}
	}
	return out, nil
}
