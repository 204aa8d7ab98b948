package builtin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nexuslabs/nexus/internal/tool"
	"golang.org/x/sync/errgroup"
)

type ethStatsResponse struct {
	Result string `json:"result"`
}

type ethPriceResponse struct {
	Result struct {
		ETHUSD          string `json:"ethusd"`
		ETHBTC          string `json:"ethbtc"`
		ETHUSDTimestamp string `json:"ethusd_timestamp"`
	} `json:"result"`
}

// OnchainData returns the on-chain analytics tool: ETH supply and price from
// Etherscan, Bitcoin difficulty/hashrate/height from Blockchain.com. Which
// chains are queried follows the chains the query mentions; a partial upstream
// failure degrades that chain's section, not the whole result.
func OnchainData(opts Options) tool.Config {
	client := opts.client()
	return tool.Config{
		ID:          "onchain_data",
		Name:        "On-Chain Data",
		Description: "Get on-chain blockchain data: supply, hashrate, difficulty, block height",
		Source:      "On-Chain Analytics",
		Timeout:     opts.timeout(),
		CacheTTL:    2 * time.Minute,
		Execute: func(ctx context.Context, params tool.Params) (any, error) {
			query := strings.ToLower(params.Query)
			data := map[string]any{}

			wantsETH := strings.Contains(query, "eth") || strings.Contains(query, "ethereum") || strings.Contains(query, "chain")
			wantsBTC := strings.Contains(query, "btc") || strings.Contains(query, "bitcoin") || strings.Contains(query, "chain")

			if wantsETH {
				if eth, err := fetchEthereumStats(ctx, client); err == nil {
					data["ethereum"] = eth
				} else {
					data["ethereum"] = map[string]any{"error": "Failed to fetch Ethereum on-chain data"}
				}
			}
			if wantsBTC {
				if btc, err := fetchBitcoinStats(ctx, client); err == nil {
					data["bitcoin"] = btc
				} else {
					data["bitcoin"] = map[string]any{"error": "Failed to fetch Bitcoin on-chain data"}
				}
			}

			if len(data) == 0 {
				if height, err := getText(ctx, client, "https://blockchain.info/q/getblockcount"); err == nil {
					data["general"] = map[string]any{
						"btc_block_height": parseNumber(height),
						"note":             `Specify "ethereum" or "bitcoin" for detailed on-chain data`,
					}
				} else {
					data["general"] = map[string]any{"note": "On-chain data temporarily unavailable"}
				}
			}
			return data, nil
		},
	}
}

func fetchEthereumStats(ctx context.Context, client *http.Client) (map[string]any, error) {
	var supply ethStatsResponse
	if err := getJSON(ctx, client, "https://api.etherscan.io/api?module=stats&action=ethsupply", &supply); err != nil {
		return nil, err
	}
	var price ethPriceResponse
	if err := getJSON(ctx, client, "https://api.etherscan.io/api?module=stats&action=ethprice", &price); err != nil {
		return nil, err
	}

	const weiPerETH = 1e18
	stats := map[string]any{
		"total_supply_eth": parseNumber(supply.Result) / weiPerETH,
		"price_usd":        parseNumber(price.Result.ETHUSD),
		"price_btc":        parseNumber(price.Result.ETHBTC),
	}
	if ts := parseNumber(price.Result.ETHUSDTimestamp); ts > 0 {
		stats["last_updated"] = time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	}
	return stats, nil
}

// fetchBitcoinStats queries Blockchain.com's three plain-text stat endpoints
// concurrently.
func fetchBitcoinStats(ctx context.Context, client *http.Client) (map[string]any, error) {
	var difficulty, hashrate, height string

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		difficulty, err = getText(ctx, client, "https://blockchain.info/q/getdifficulty")
		return err
	})
	g.Go(func() (err error) {
		hashrate, err = getText(ctx, client, "https://blockchain.info/q/hashrate")
		return err
	})
	g.Go(func() (err error) {
		height, err = getText(ctx, client, "https://blockchain.info/q/getblockcount")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return map[string]any{
		"difficulty":   parseNumber(difficulty),
		"hashrate_ghs": parseNumber(hashrate),
		"block_height": parseNumber(height),
	}, nil
}

func parseNumber(s string) float64 {
	n, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return n
}
