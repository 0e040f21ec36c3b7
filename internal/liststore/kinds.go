package liststore

import (
	"fmt"

	"github.com/actuallystonmai/streamfront/internal/domain"
	"github.com/actuallystonmai/streamfront/internal/storage"
)

const (
	// MaxRecent caps history and continue-watching.
	MaxRecent = 20
	// CompletionThreshold is the progress percentage at which a title counts
	// as finished and leaves continue-watching.
	CompletionThreshold = 95.0
)

var configs = map[domain.ListKind]Config{
	domain.ListWatchlist: {Kind: domain.ListWatchlist},
	domain.ListMyList:    {Kind: domain.ListMyList},
	domain.ListHistory:   {Kind: domain.ListHistory, MaxEntries: MaxRecent},
	domain.ListContinueWatching: {
		Kind:       domain.ListContinueWatching,
		MaxEntries: MaxRecent,
		Evict:      Completed,
	},
}

// Completed reports whether playback reached the completion threshold.
func Completed(e domain.Entry) bool {
	return e.Progress >= CompletionThreshold
}

func ConfigFor(kind domain.ListKind) (Config, error) {
	cfg, ok := configs[kind]
	if !ok {
		return Config{}, domain.ErrUnknownList
	}
	return cfg, nil
}

func DocumentKey(sessionID string, kind domain.ListKind) string {
	return fmt.Sprintf("session:%s:%s", sessionID, kind)
}

// ForSession builds the store for one list kind of a session.
func ForSession(kv storage.KV, sessionID string, kind domain.ListKind, opts ...Option) (*Store, error) {
	cfg, err := ConfigFor(kind)
	if err != nil {
		return nil, err
	}
	return New(kv, DocumentKey(sessionID, kind), cfg, opts...), nil
}
