package builtin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nexuslabs/nexus/internal/tool"
)

type gasOracleResponse struct {
	Result struct {
		SafeGasPrice    string `json:"SafeGasPrice"`
		ProposeGasPrice string `json:"ProposeGasPrice"`
		FastGasPrice    string `json:"FastGasPrice"`
		SuggestBaseFee  string `json:"suggestBaseFee"`
	} `json:"result"`
}

// GasTracker returns the Etherscan gas oracle tool.
func GasTracker(opts Options) tool.Config {
	client := opts.client()
	return tool.Config{
		ID:          "gas_tracker",
		Name:        "ETH Gas Tracker",
		Description: "Get current Ethereum gas prices and fee recommendations",
		Source:      "Etherscan Gas Tracker",
		Timeout:     opts.timeout(),
		CacheTTL:    15 * time.Second,
		Execute: func(ctx context.Context, _ tool.Params) (any, error) {
			var resp gasOracleResponse
			url := "https://api.etherscan.io/api?module=gastracker&action=gasoracle"
			if err := getJSON(ctx, client, url, &resp); err != nil {
				return nil, fmt.Errorf("gas_tracker: %w", err)
			}

			average, _ := strconv.ParseFloat(resp.Result.ProposeGasPrice, 64)
			low, _ := strconv.ParseFloat(resp.Result.SafeGasPrice, 64)
			high, _ := strconv.ParseFloat(resp.Result.FastGasPrice, 64)
			baseFee, _ := strconv.ParseFloat(resp.Result.SuggestBaseFee, 64)

			return map[string]any{
				"low":            low,
				"average":        average,
				"high":           high,
				"base_fee":       baseFee,
				"unit":           "Gwei",
				"recommendation": gasRecommendation(average),
			}, nil
		},
	}
}

func gasRecommendation(avgGas float64) string {
	switch {
	case avgGas < 10:
		return "Very low gas — excellent time for transactions"
	case avgGas < 25:
		return "Low gas — good time for most transactions"
	case avgGas < 50:
		return "Moderate gas — normal network activity"
	case avgGas < 100:
		return "High gas — consider waiting for lower fees"
	default:
		return "Very high gas — network congestion, delay non-urgent transactions"
	}
}
