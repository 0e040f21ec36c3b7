package service

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/actuallystonmai/streamfront/internal/domain"
	"github.com/actuallystonmai/streamfront/internal/liststore"
	"github.com/actuallystonmai/streamfront/internal/storage"
)

const snapshotConcurrency = 4

var sessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Service exposes the per-session list stores.
type Service struct {
	kv    storage.KV
	locks *liststore.Locks
	now   func() time.Time
}

func NewService(kv storage.KV) *Service {
	return &Service{
		kv:    kv,
		locks: &liststore.Locks{},
		now:   time.Now,
	}
}

func ValidateSession(sessionID string) error {
	if !sessionPattern.MatchString(sessionID) {
		return domain.ErrInvalidSession
	}
	return nil
}

func (s *Service) NewSession() domain.SessionInfo {
	return domain.SessionInfo{
		SessionID: uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}
}

func (s *Service) store(sessionID string, kind domain.ListKind) (*liststore.Store, error) {
	if err := ValidateSession(sessionID); err != nil {
		return nil, err
	}
	return liststore.ForSession(s.kv, sessionID, kind,
		liststore.WithLocks(s.locks),
		liststore.WithClock(s.now),
	)
}

func (s *Service) List(ctx context.Context, sessionID string, kind domain.ListKind) ([]domain.Entry, error) {
	st, err := s.store(sessionID, kind)
	if err != nil {
		return nil, err
	}
	return st.List(ctx), nil
}

func (s *Service) Upsert(ctx context.Context, sessionID string, kind domain.ListKind, e domain.Entry) ([]domain.Entry, error) {
	st, err := s.store(sessionID, kind)
	if err != nil {
		return nil, err
	}
	return st.Upsert(ctx, e)
}

func (s *Service) Remove(ctx context.Context, sessionID string, kind domain.ListKind, id int64, typ domain.ContentType) ([]domain.Entry, error) {
	st, err := s.store(sessionID, kind)
	if err != nil {
		return nil, err
	}
	return st.Remove(ctx, id, typ)
}

// Get returns domain.ErrNotFound when the key is absent.
func (s *Service) Get(ctx context.Context, sessionID string, kind domain.ListKind, id int64, typ domain.ContentType) (domain.Entry, error) {
	st, err := s.store(sessionID, kind)
	if err != nil {
		return domain.Entry{}, err
	}
	e, ok := st.Get(ctx, id, typ)
	if !ok {
		return domain.Entry{}, domain.ErrNotFound
	}
	return e, nil
}

func (s *Service) Clear(ctx context.Context, sessionID string, kind domain.ListKind) error {
	st, err := s.store(sessionID, kind)
	if err != nil {
		return err
	}
	return st.Clear(ctx)
}

// Snapshot reads every list of a session concurrently.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	if err := ValidateSession(sessionID); err != nil {
		return nil, err
	}

	results := make([][]domain.Entry, len(domain.ListKinds))
	errs := make([]error, len(domain.ListKinds))
	var wg sync.WaitGroup
	sem := make(chan struct{}, snapshotConcurrency)

	for i, kind := range domain.ListKinds {
		wg.Add(1)
		go func(idx int, k domain.ListKind) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx], errs[idx] = s.List(ctx, sessionID, k)
		}(i, kind)
	}
	wg.Wait()

	snap := &domain.Snapshot{
		SessionID:   sessionID,
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
	}
	for i, kind := range domain.ListKinds {
		if errs[i] != nil {
			return nil, fmt.Errorf("read %s: %w", kind, errs[i])
		}
		snap.Set(kind, results[i])
	}
	return snap, nil
}

// RecordPlayback is the "play" action: the title goes to the head of the
// history and its progress is saved to continue-watching.
func (s *Service) RecordPlayback(ctx context.Context, sessionID string, e domain.Entry) (*domain.Snapshot, error) {
	if _, err := s.Upsert(ctx, sessionID, domain.ListHistory, e); err != nil {
		return nil, fmt.Errorf("record history: %w", err)
	}
	if _, err := s.Upsert(ctx, sessionID, domain.ListContinueWatching, e); err != nil {
		return nil, fmt.Errorf("record progress: %w", err)
	}
	if liststore.Completed(e) {
		log.Printf("[service] session %s finished %s", sessionID, e.Key())
	}
	return s.Snapshot(ctx, sessionID)
}
