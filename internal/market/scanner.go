package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonnyspicer/mango"
)

// OtherCategory is assigned to Manifold questions no keyword matches.
const OtherCategory = "other"

// ManifoldSource builds the catalog from open binary Manifold markets.
type ManifoldSource struct {
	client     *mango.Client
	limit      int64
	categories map[string][]string
	now        func() time.Time
}

func NewManifoldSource(client *mango.Client, limit int64, categories map[string][]string) *ManifoldSource {
	return &ManifoldSource{
		client:     client,
		limit:      limit,
		categories: categories,
		now:        time.Now,
	}
}

// Fetch searches open binary markets sorted by liquidity. The mango client
// has no context support, so a cancelled ctx abandons the call in flight.
func (s *ManifoldSource) Fetch(ctx context.Context) ([]Market, error) {
	type fetchResult struct {
		markets *[]mango.FullMarket
		err     error
	}
	ch := make(chan fetchResult, 1)
	go func() {
		markets, err := s.client.SearchMarkets(mango.SearchMarketsRequest{
			Filter:       "open",
			ContractType: "BINARY",
			Sort:         "liquidity",
			Limit:        s.limit,
		})
		ch <- fetchResult{markets, err}
	}()

	var r fetchResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		return nil, fmt.Errorf("searching binary markets: %w", r.err)
	}
	if r.markets == nil {
		return nil, nil
	}

	now := s.now()
	out := make([]Market, 0, len(*r.markets))
	for _, m := range *r.markets {
		if m.IsResolved {
			continue
		}
		out = append(out, s.fullMarketToMarket(m, now))
	}
	slog.Info("scanned manifold markets", "count", len(out))
	return out, nil
}

func (s *ManifoldSource) fullMarketToMarket(m mango.FullMarket, now time.Time) Market {
	yes := probabilityToCents(m.Probability)
	no := 100 - yes
	return Market{
		ID:         m.Id,
		Question:   m.Question,
		Category:   Categorize(m.Question, s.categories),
		YesPrice:   yes,
		NoPrice:    no,
		YesPercent: fmt.Sprintf("%d%%", yes),
		NoPercent:  fmt.Sprintf("%d%%", no),
		Volume:     volumeLabel(m.Volume),
		EndsIn:     endsInLabel(now, time.UnixMilli(m.CloseTime)),
	}
}

// probabilityToCents maps a probability to a tradable price, clamped to
// [1,99] so neither side is ever priced at zero.
func probabilityToCents(p float64) int64 {
	c := int64(math.Round(p * 100))
	if c < 1 {
		return 1
	}
	if c > 99 {
		return 99
	}
	return c
}

func volumeLabel(v float64) string {
	return "Ṁ" + humanize.Comma(int64(math.Round(v)))
}

func endsInLabel(now, closeTime time.Time) string {
	if !closeTime.After(now) {
		return "closed"
	}
	return strings.TrimSpace(humanize.RelTime(now, closeTime, "", ""))
}

// Categorize returns the first category (in name order) with a keyword
// contained in the question, or OtherCategory.
func Categorize(question string, categories map[string][]string) string {
	q := strings.ToLower(question)
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, kw := range categories[name] {
			if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
				return name
			}
		}
	}
	return OtherCategory
}
