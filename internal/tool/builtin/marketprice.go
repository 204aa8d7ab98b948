package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/nexuslabs/nexus/internal/tool"
)

// symbolMap maps tickers and common names to CoinGecko coin ids.
var symbolMap = map[string]string{
	"btc": "bitcoin", "bitcoin": "bitcoin",
	"eth": "ethereum", "ethereum": "ethereum",
	"sol": "solana", "solana": "solana",
	"bnb":     "binancecoin",
	"xrp":     "ripple",
	"ada":     "cardano",
	"doge":    "dogecoin",
	"avax":    "avalanche-2",
	"dot":     "polkadot",
	"matic":   "matic-network",
	"polygon": "matic-network",
	"link":    "chainlink",
	"uni":     "uniswap",
	"atom":    "cosmos",
	"arb":     "arbitrum",
	"op":      "optimism",
}

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a misspelled
// coin name (e.g. "etherum") to resolve against the symbol map.
const fuzzyThreshold = 0.93

var dollarTickerPattern = regexp.MustCompile(`\$([a-z]+)`)

// MarketPrice returns the CoinGecko price tool: real-time prices, 24h change,
// market cap and volume for the coins mentioned in the query.
func MarketPrice(opts Options) tool.Config {
	client := opts.client()
	return tool.Config{
		ID:          "market_price",
		Name:        "Market Price",
		Description: "Get real-time crypto prices, 24h change, market cap, and volume",
		Source:      "CoinGecko",
		Timeout:     opts.timeout(),
		CacheTTL:    30 * time.Second,
		Execute: func(ctx context.Context, params tool.Params) (any, error) {
			ids := extractSymbols(params.Query)
			url := fmt.Sprintf(
				"https://api.coingecko.com/api/v3/simple/price?ids=%s&vs_currencies=usd&include_24hr_change=true&include_market_cap=true&include_24hr_vol=true",
				strings.Join(ids, ","),
			)

			var data map[string]map[string]float64
			if err := getJSON(ctx, client, url, &data); err != nil {
				return nil, fmt.Errorf("market_price: %w", err)
			}
			return data, nil
		},
	}
}

// extractSymbols finds the CoinGecko ids mentioned in a query: $TOKEN
// patterns first, then known names and tickers, then a fuzzy pass for
// near-miss spellings. Defaults to bitcoin when nothing matches.
func extractSymbols(query string) []string {
	lower := strings.ToLower(query)

	var found []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			found = append(found, id)
		}
	}

	for _, m := range dollarTickerPattern.FindAllStringSubmatch(lower, -1) {
		if id, ok := symbolMap[m[1]]; ok {
			add(id)
		}
	}

	for key, id := range symbolMap {
		if strings.Contains(lower, key) {
			add(id)
		}
	}

	// Fuzzy pass for misspelled full names ("etherum", "bitcion"). Tickers
	// are too short for similarity scoring to be meaningful.
	if len(found) == 0 {
		for _, word := range strings.Fields(lower) {
			word = strings.Trim(word, ".,!?$")
			if len(word) < 5 {
				continue
			}
			for key, id := range symbolMap {
				if len(key) < 5 {
					continue
				}
				if matchr.JaroWinkler(word, key, false) >= fuzzyThreshold {
					add(id)
				}
			}
		}
	}

	if len(found) == 0 {
		return []string{"bitcoin"}
	}
	return found
}
