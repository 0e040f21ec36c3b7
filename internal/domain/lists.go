package domain

type ListKind string

const (
	ListWatchlist        ListKind = "watchlist"
	ListMyList           ListKind = "my-list"
	ListHistory          ListKind = "history"
	ListContinueWatching ListKind = "continue-watching"
)

// ListKinds in the order they appear in a snapshot.
var ListKinds = []ListKind{ListWatchlist, ListMyList, ListHistory, ListContinueWatching}

func ParseListKind(s string) (ListKind, error) {
	for _, k := range ListKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", ErrUnknownList
}

type Snapshot struct {
	SessionID        string  `json:"session_id"`
	Watchlist        []Entry `json:"watchlist"`
	MyList           []Entry `json:"my_list"`
	History          []Entry `json:"history"`
	ContinueWatching []Entry `json:"continue_watching"`
	GeneratedAt      string  `json:"generated_at"`
}

// Set stores entries under the field matching kind.
func (s *Snapshot) Set(kind ListKind, entries []Entry) {
	switch kind {
	case ListWatchlist:
		s.Watchlist = entries
	case ListMyList:
		s.MyList = entries
	case ListHistory:
		s.History = entries
	case ListContinueWatching:
		s.ContinueWatching = entries
	}
}
