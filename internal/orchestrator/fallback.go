package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nexuslabs/nexus/pkg/types"
)

// demoResponse builds the deterministic demo-mode reply used when no LLM
// provider is configured. Known tool sources get a structured rendering;
// anything else is dumped as indented JSON. No network calls.
func demoResponse(message string, toolResults []types.ToolResult, mode types.Mode) string {
	var parts []string
	parts = append(parts,
		"**[Demo Mode — No LLM provider configured]**\n",
		"> Add an LLM provider under `providers.llm` in the config file for full AI responses.\n",
	)

	if len(toolResults) == 0 {
		parts = append(parts,
			fmt.Sprintf("I received your message: %q\n", message),
			fmt.Sprintf("In full mode (with an LLM provider configured), I would analyze this using the **%s** perspective with AI-powered reasoning.\n", mode),
			"**To activate full mode:**",
			"1. Get an API key from a supported provider (Groq, Anthropic, OpenAI, ...)",
			"2. Add it under `providers.llm.free` in the config file",
			"3. Restart the server",
		)
		return strings.Join(parts, "\n")
	}

	parts = append(parts, "Here's the **live data** I fetched for your query:\n")

	for _, result := range toolResults {
		parts = append(parts,
			fmt.Sprintf("### %s", result.Source),
			fmt.Sprintf("*Fetched in %dms*\n", result.LatencyMs),
		)

		switch result.Source {
		case "CoinGecko":
			parts = append(parts, renderPrices(result.Data)...)
		case "Alternative.me Fear & Greed Index":
			parts = append(parts, renderFearGreed(result.Data)...)
		case "CryptoCompare":
			parts = append(parts, renderNews(result.Data)...)
		default:
			parts = append(parts, renderJSON(result.Data)...)
		}
	}

	parts = append(parts, fmt.Sprintf("---\n*With an LLM provider configured, Nexus would provide AI analysis of this data in **%s mode**.*", mode))
	return strings.Join(parts, "\n")
}

// reencode converts an opaque tool payload into a typed view via a JSON
// round trip, since Data may be a decoded map or an in-memory struct.
func reencode(data, view any) bool {
	b, err := json.Marshal(data)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, view) == nil
}

func renderPrices(data any) []string {
	var prices map[string]struct {
		USD       float64  `json:"usd"`
		Change24h *float64 `json:"usd_24h_change"`
		MarketCap *float64 `json:"usd_market_cap"`
	}
	if !reencode(data, &prices) {
		return renderJSON(data)
	}

	coins := make([]string, 0, len(prices))
	for coin := range prices {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	var lines []string
	for _, coin := range coins {
		info := prices[coin]
		change := ""
		if info.Change24h != nil {
			sign := ""
			if *info.Change24h >= 0 {
				sign = "+"
			}
			change = fmt.Sprintf(" (%s%.2f%% 24h)", sign, *info.Change24h)
		}
		mcap := ""
		if info.MarketCap != nil && *info.MarketCap > 0 {
			mcap = fmt.Sprintf(" | MCap: $%.1fB", *info.MarketCap/1e9)
		}
		lines = append(lines, fmt.Sprintf("- **%s**: $%s%s%s", capitalize(coin), formatAmount(info.USD), change, mcap))
	}
	return append(lines, "")
}

func renderFearGreed(data any) []string {
	var fg struct {
		Value       int    `json:"value"`
		Label       string `json:"label"`
		Description string `json:"description"`
	}
	if !reencode(data, &fg) {
		return renderJSON(data)
	}
	return []string{
		fmt.Sprintf("- **Score**: %d/100", fg.Value),
		fmt.Sprintf("- **Label**: %s", fg.Label),
		fmt.Sprintf("- **Analysis**: %s", fg.Description),
		"",
	}
}

func renderNews(data any) []string {
	var news struct {
		Articles []struct {
			Title  string `json:"title"`
			Source string `json:"source"`
		} `json:"articles"`
	}
	if !reencode(data, &news) || len(news.Articles) == 0 {
		return renderJSON(data)
	}

	var lines []string
	for i, article := range news.Articles {
		if i == 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("- **%s** *(%s)*", article.Title, article.Source))
	}
	return append(lines, "")
}

func renderJSON(data any) []string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		b = []byte("{}")
	}
	return []string{"```json", string(b), "```\n"}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatAmount renders a dollar amount with thousands separators, dropping
// trailing decimal zeros.
func formatAmount(v float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	neg := strings.HasPrefix(intPart, "-")
	if neg {
		intPart = intPart[1:]
	}
	var grouped strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(d)
	}
	out := grouped.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
