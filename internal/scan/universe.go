package scan

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/provider"
)

// universeFile is the on-disk shape of a custom symbol list.
type universeFile struct {
	Symbols []string `yaml:"symbols"`
}

// resolveUniverse produces the screening rows for the configured universe
// selector. Static and custom lists are resolved with one batched screen
// call; the "screener" selector runs a provider-native screen with the
// configured ranges. All provider traffic goes through the router.
func (s *Scanner) resolveUniverse(ctx context.Context) ([]model.ScreenRow, error) {
	params := map[string]any{
		"min_price":      s.cfg.MinPrice,
		"max_price":      s.cfg.MaxPrice,
		"min_volume":     s.cfg.MinVolume,
		"min_market_cap": s.cfg.MinMarketCap,
		"max_market_cap": s.cfg.MaxMarketCap,
	}

	switch s.cfg.Universe {
	case "custom":
		symbols, err := loadUniverseFile(s.cfg.UniverseFile)
		if err != nil {
			return nil, err
		}
		params["symbols"] = symbols
	case "screener":
		// Provider-native screening; no symbol list.
	default: // "static"
		if len(s.cfg.Symbols) == 0 {
			return nil, eris.New("scan: static universe has no symbols")
		}
		params["symbols"] = s.cfg.Symbols
	}

	resp, err := s.router.Route(ctx, provider.Request{
		Op:     model.OpScreen,
		Params: params,
	})
	if err != nil {
		return nil, err
	}

	rows, ok := resp.Data.([]model.ScreenRow)
	if !ok {
		return nil, eris.New("scan: screen response has unexpected payload")
	}
	return rows, nil
}

func loadUniverseFile(path string) ([]string, error) {
	if path == "" {
		return nil, eris.New("scan: custom universe requires universe_file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "scan: read universe file")
	}
	var uf universeFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return nil, eris.Wrap(err, "scan: parse universe file")
	}
	if len(uf.Symbols) == 0 {
		return nil, eris.New("scan: universe file lists no symbols")
	}
	return uf.Symbols, nil
}

// screen applies the configured price, volume and market cap ranges. It
// runs entirely on data already in hand; no per-symbol calls.
func (s *Scanner) screen(rows []model.ScreenRow) []model.ScreenRow {
	out := make([]model.ScreenRow, 0, len(rows))
	for _, row := range rows {
		if s.cfg.MinPrice > 0 && row.Price < s.cfg.MinPrice {
			continue
		}
		if s.cfg.MaxPrice > 0 && row.Price > s.cfg.MaxPrice {
			continue
		}
		if s.cfg.MinVolume > 0 && row.Volume < s.cfg.MinVolume {
			continue
		}
		if s.cfg.MinMarketCap > 0 && row.MarketCap < s.cfg.MinMarketCap {
			continue
		}
		if s.cfg.MaxMarketCap > 0 && row.MarketCap > s.cfg.MaxMarketCap {
			continue
		}
		out = append(out, row)
	}
	return out
}
