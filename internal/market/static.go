package market

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// StaticSource serves a fixed catalog, either the built-in markets or the
// contents of a TOML seed file.
type StaticSource struct {
	markets []Market
}

func NewStaticSource(markets []Market) *StaticSource {
	return &StaticSource{markets: markets}
}

func (s *StaticSource) Fetch(ctx context.Context) ([]Market, error) {
	out := make([]Market, len(s.markets))
	copy(out, s.markets)
	return out, nil
}

type seedFile struct {
	Markets []Market `toml:"markets"`
}

// LoadSeed reads [[markets]] tables from a TOML file. Every market must
// carry an ID and valid prices for both sides.
func LoadSeed(path string) ([]Market, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}

	var seed seedFile
	if err := toml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed: %w", err)
	}

	seen := make(map[string]bool, len(seed.Markets))
	for _, m := range seed.Markets {
		if m.ID == "" {
			return nil, fmt.Errorf("seed market %q has no id", m.Question)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate seed market id %s", m.ID)
		}
		seen[m.ID] = true
		if _, err := m.Price(Yes); err != nil {
			return nil, err
		}
		if _, err := m.Price(No); err != nil {
			return nil, err
		}
	}
	return seed.Markets, nil
}

// DefaultMarkets is the built-in storefront catalog.
func DefaultMarkets() []Market {
	return []Market{
		{
			ID: "1", Question: "Will Bitcoin reach $150K by end of 2025?", Category: "crypto",
			YesPrice: 65, NoPrice: 35, YesPercent: "65%", NoPercent: "35%", Volume: "$2.4M", EndsIn: "3 months",
		},
		{
			ID: "2", Question: "Will Solana flip Ethereum in daily active addresses this quarter?", Category: "crypto",
			YesPrice: 42, NoPrice: 58, YesPercent: "42%", NoPercent: "58%", Volume: "$860K", EndsIn: "6 weeks",
		},
		{
			ID: "3", Question: "Will the incumbent party win the next presidential election?", Category: "politics",
			YesPrice: 48, NoPrice: 52, YesPercent: "48%", NoPercent: "52%", Volume: "$5.1M", EndsIn: "1 year",
		},
		{
			ID: "4", Question: "Will a new frontier AI model be released before July?", Category: "tech",
			YesPrice: 78, NoPrice: 22, YesPercent: "78%", NoPercent: "22%", Volume: "$1.2M", EndsIn: "4 months",
		},
		{
			ID: "5", Question: "Will Apple announce a foldable iPhone this year?", Category: "tech",
			YesPrice: 18, NoPrice: 82, YesPercent: "18%", NoPercent: "82%", Volume: "$540K", EndsIn: "8 months",
		},
		{
			ID: "6", Question: "Will the defending champions win the NBA Finals?", Category: "sports",
			YesPrice: 31, NoPrice: 69, YesPercent: "31%", NoPercent: "69%", Volume: "$980K", EndsIn: "2 months",
		},
		{
			ID: "7", Question: "Will the top-grossing movie of the summer pass $1B at the box office?", Category: "entertainment",
			YesPrice: 55, NoPrice: 45, YesPercent: "55%", NoPercent: "45%", Volume: "$310K", EndsIn: "5 months",
		},
	}
}
