package seeds

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/actuallystonmai/streamfront/internal/domain"
	"github.com/actuallystonmai/streamfront/internal/service"
)

// DemoSession is the session id populated by Setup.
const DemoSession = "demo"

type title struct {
	name string
	typ  domain.ContentType
	year int
}

var catalogue = []title{
	{"Die Hard", domain.TypeMovie, 1988},
	{"Mad Max: Fury Road", domain.TypeMovie, 2015},
	{"John Wick", domain.TypeMovie, 2014},
	{"The Dark Knight", domain.TypeMovie, 2008},
	{"Gladiator", domain.TypeMovie, 2000},
	{"The Shawshank Redemption", domain.TypeMovie, 1994},
	{"Parasite", domain.TypeMovie, 2019},
	{"Whiplash", domain.TypeMovie, 2014},
	{"Hot Fuzz", domain.TypeMovie, 2007},
	{"Groundhog Day", domain.TypeMovie, 1993},
	{"Se7en", domain.TypeMovie, 1995},
	{"Prisoners", domain.TypeMovie, 2013},
	{"Blade Runner 2049", domain.TypeMovie, 2017},
	{"Arrival", domain.TypeMovie, 2016},
	{"Dune", domain.TypeMovie, 2021},
	{"Breaking Bad", domain.TypeTV, 2008},
	{"The Wire", domain.TypeTV, 2002},
	{"Severance", domain.TypeTV, 2022},
	{"Dark", domain.TypeTV, 2017},
	{"The Bear", domain.TypeTV, 2022},
	{"Fargo", domain.TypeTV, 2014},
	{"Succession", domain.TypeTV, 2018},
	{"Andor", domain.TypeTV, 2022},
	{"Mr. Robot", domain.TypeTV, 2015},
	{"Chernobyl", domain.TypeTV, 2019},
}

// Setup fills the demo session with a deterministic watch history, a
// watchlist and a my-list.
func Setup(ctx context.Context, svc *service.Service) error {
	rng := rand.New(rand.NewSource(42))

	log.Println("[seed] clearing demo session")
	for _, kind := range domain.ListKinds {
		if err := svc.Clear(ctx, DemoSession, kind); err != nil {
			return fmt.Errorf("clear %s: %w", kind, err)
		}
	}

	log.Println("[seed] recording playback")
	if err := seedPlayback(ctx, svc, rng, 30); err != nil {
		return fmt.Errorf("seed playback: %w", err)
	}

	log.Println("[seed] inserting watchlist")
	if err := seedList(ctx, svc, rng, domain.ListWatchlist, 10); err != nil {
		return fmt.Errorf("seed watchlist: %w", err)
	}

	log.Println("[seed] inserting my-list")
	if err := seedList(ctx, svc, rng, domain.ListMyList, 5); err != nil {
		return fmt.Errorf("seed my-list: %w", err)
	}

	log.Println("[seed] seeding complete")
	return nil
}

// NeedsSeed reports whether the demo session has no history yet.
func NeedsSeed(ctx context.Context, svc *service.Service) (bool, error) {
	history, err := svc.List(ctx, DemoSession, domain.ListHistory)
	if err != nil {
		return false, err
	}
	return len(history) == 0, nil
}

func seedPlayback(ctx context.Context, svc *service.Service, rng *rand.Rand, n int) error {
	for i := 0; i < n; i++ {
		e := entryFor(rng)
		e.Duration = float64(weightedChoice(rng, []int{1500, 2700, 6600}, []float64{0.3, 0.3, 0.4}))
		e.Progress = math.Round(rng.Float64()*1000) / 10
		e.Elapsed = math.Round(e.Duration * e.Progress / 100)
		if e.Type == domain.TypeTV {
			e.Season = rng.Intn(4) + 1
			e.Episode = rng.Intn(10) + 1
		}
		if _, err := svc.RecordPlayback(ctx, DemoSession, e); err != nil {
			return err
		}
	}
	return nil
}

func seedList(ctx context.Context, svc *service.Service, rng *rand.Rand, kind domain.ListKind, n int) error {
	for i := 0; i < n; i++ {
		if _, err := svc.Upsert(ctx, DemoSession, kind, entryFor(rng)); err != nil {
			return err
		}
	}
	return nil
}

func entryFor(rng *rand.Rand) domain.Entry {
	idx := int(math.Pow(rng.Float64(), 1.3) * float64(len(catalogue)))
	idx = max(0, min(idx, len(catalogue)-1))
	t := catalogue[idx]
	releaseDate := time.Date(t.year, time.Month(rng.Intn(12)+1), rng.Intn(28)+1, 0, 0, 0, 0, time.UTC)

	return domain.Entry{
		ID:          int64(1000 + idx),
		Type:        t.typ,
		Title:       t.name,
		PosterPath:  fmt.Sprintf("/posters/%d.jpg", 1000+idx),
		Rating:      ratingFor(rng),
		ReleaseDate: releaseDate.Format("2006-01-02"),
	}
}

// ratingFor returns a 0.5-9.5 rating skewed towards the low end.
func ratingFor(rng *rand.Rand) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.001
	}
	raw := 5 + 4.5*(2*math.Pow(u, 2.0)-1)
	return math.Round(raw*10) / 10
}

func weightedChoice(rng *rand.Rand, choices []int, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r <= cumulative {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}
