package liststore

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/actuallystonmai/streamfront/internal/domain"
	"github.com/actuallystonmai/streamfront/internal/storage"
)

// Config describes one list kind.
type Config struct {
	Kind domain.ListKind
	// MaxEntries caps the list; 0 means unbounded.
	MaxEntries int
	// Evict reports whether an upserted entry should be dropped instead of kept.
	Evict func(domain.Entry) bool
}

// Store is a single JSON-array document of entries, newest first.
type Store struct {
	kv    storage.KV
	key   string
	cfg   Config
	locks *Locks
	now   func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocks shares a lock table between stores so that writers of the same
// document are serialised.
func WithLocks(l *Locks) Option {
	return func(s *Store) { s.locks = l }
}

func New(kv storage.KV, key string, cfg Config, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		key:   key,
		cfg:   cfg,
		locks: defaultLocks,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Kind() domain.ListKind {
	return s.cfg.Kind
}

// List degrades to an empty list when the document cannot be read.
func (s *Store) List(ctx context.Context) []domain.Entry {
	entries, err := s.read(ctx)
	if err != nil {
		log.Printf("[store] read %s: %v", s.key, err)
		return []domain.Entry{}
	}
	return entries
}

// Upsert replaces any entry with the same key by e, stamped with the current
// time, at the head of the list.
func (s *Store) Upsert(ctx context.Context, e domain.Entry) ([]domain.Entry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.Progress = clampProgress(e.Progress)

	mu := s.locks.For(s.key)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	entries := without(current, e.Key())
	if s.cfg.Evict == nil || !s.cfg.Evict(e) {
		e.UpdatedAt = s.now().UnixMilli()
		entries = append([]domain.Entry{e}, entries...)
	}
	if s.cfg.MaxEntries > 0 && len(entries) > s.cfg.MaxEntries {
		entries = entries[:s.cfg.MaxEntries]
	}

	if err := s.save(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) Remove(ctx context.Context, id int64, typ domain.ContentType) ([]domain.Entry, error) {
	mu := s.locks.For(s.key)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	entries := without(current, domain.Key{ID: id, Type: typ})
	if err := s.save(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) Get(ctx context.Context, id int64, typ domain.ContentType) (domain.Entry, bool) {
	key := domain.Key{ID: id, Type: typ}
	for _, e := range s.List(ctx) {
		if e.Key() == key {
			return e, true
		}
	}
	return domain.Entry{}, false
}

func (s *Store) Contains(ctx context.Context, id int64, typ domain.ContentType) bool {
	_, ok := s.Get(ctx, id, typ)
	return ok
}

func (s *Store) Clear(ctx context.Context) error {
	mu := s.locks.For(s.key)
	mu.Lock()
	defer mu.Unlock()
	return s.save(ctx, []domain.Entry{})
}

// read fails only when the backend does; a missing or malformed document
// reads as empty.
func (s *Store) read(ctx context.Context) ([]domain.Entry, error) {
	entries := []domain.Entry{}
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.cfg.Kind, err)
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("[store] malformed document %s, treating as empty: %v", s.key, err)
		return []domain.Entry{}, nil
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, entries []domain.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.key, err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		log.Printf("[store] write %s: %v", s.key, err)
		return fmt.Errorf("write %s: %w", s.cfg.Kind, err)
	}
	return nil
}

func without(entries []domain.Entry, key domain.Key) []domain.Entry {
	out := make([]domain.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Key() != key {
			out = append(out, e)
		}
	}
	return out
}

func clampProgress(p float64) float64 {
	return max(0, min(p, 100))
}

const lockStripes = 64

// Locks is a fixed table of mutexes indexed by document key hash.
type Locks struct {
	stripes [lockStripes]sync.Mutex
}

var defaultLocks = &Locks{}

func (l *Locks) For(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.stripes[h.Sum32()%lockStripes]
}
