package builtin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nexuslabs/nexus/internal/tool"
)

type fngResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
		Timestamp           string `json:"timestamp"`
	} `json:"data"`
}

// FearGreed returns the Alternative.me Fear & Greed Index tool.
func FearGreed(opts Options) tool.Config {
	client := opts.client()
	return tool.Config{
		ID:          "fear_greed",
		Name:        "Fear & Greed Index",
		Description: "Get the current crypto Fear & Greed Index score and sentiment",
		Source:      "Alternative.me Fear & Greed Index",
		Timeout:     opts.timeout(),
		CacheTTL:    5 * time.Minute,
		Execute: func(ctx context.Context, _ tool.Params) (any, error) {
			var resp fngResponse
			if err := getJSON(ctx, client, "https://api.alternative.me/fng/?limit=1&format=json", &resp); err != nil {
				return nil, fmt.Errorf("fear_greed: %w", err)
			}
			if len(resp.Data) == 0 {
				return nil, fmt.Errorf("fear_greed: empty response")
			}

			entry := resp.Data[0]
			value, _ := strconv.Atoi(entry.Value)
			return map[string]any{
				"value":       value,
				"label":       entry.ValueClassification,
				"timestamp":   entry.Timestamp,
				"description": sentimentDescription(value),
			}, nil
		},
	}
}

func sentimentDescription(value int) string {
	switch {
	case value <= 25:
		return "Extreme Fear — investors are very worried, potential buying opportunity"
	case value <= 45:
		return "Fear — market sentiment is negative"
	case value <= 55:
		return "Neutral — market sentiment is balanced"
	case value <= 75:
		return "Greed — investors are getting greedy, caution advised"
	default:
		return "Extreme Greed — market may be overheated, high risk of correction"
	}
}
