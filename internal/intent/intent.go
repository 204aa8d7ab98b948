// Package intent infers what external data a user query requires.
//
// Classification is pure pattern matching over the message text: no network,
// no allocation beyond the result, sub-millisecond. The resulting [Intent]
// drives tool selection and prompt complexity downstream.
package intent

import "regexp"

// Hint identifies a data-need category detected in a message.
type Hint string

// Known hints, each backed by its own detection pattern.
const (
	HintPrice     Hint = "price"
	HintMarket    Hint = "market"
	HintNews      Hint = "news"
	HintDefi      Hint = "defi"
	HintAnalysis  Hint = "analysis"
	HintFear      Hint = "fear"
	HintPortfolio Hint = "portfolio"
	HintSearch    Hint = "search"
)

// Complexity is a coarse measure of how much context a query needs,
// derived from the number of matched hints.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Intent is the structured inference for one message. It is created fresh per
// request and never mutated afterwards.
type Intent struct {
	// NeedsRealtime is set when the message carries a temporal marker or any
	// hint matched: either way the answer depends on live data.
	NeedsRealtime bool

	// NeedsTools is set when at least one hint matched.
	NeedsTools bool

	// Hints are the matched data-need categories, in detection order.
	Hints []Hint

	// Complexity follows |Hints|: more than two is high, at least one is
	// medium, none is low.
	Complexity Complexity
}

const coinAlternation = `btc|eth|sol|bitcoin|ethereum|solana|bnb|xrp|ada|doge|avax|dot|matic|link|uni|atom|arb|op`

// hintPatterns pairs each hint with its detection pattern. Order matters for
// the stability of [Intent.Hints], nothing else.
var hintPatterns = []struct {
	hint    Hint
	pattern *regexp.Regexp
}{
	{HintPrice, regexp.MustCompile(`(?i)\b(price|worth|cost|value|how much)\b.*\b(` + coinAlternation + `|\$[a-z]{2,})\b|\b(` + coinAlternation + `)\b.*\b(price|worth|cost|trading|at)\b`)},
	{HintMarket, regexp.MustCompile(`(?i)\b(market|cap|volume|dominance|trend|overview|total)\b`)},
	{HintNews, regexp.MustCompile(`(?i)\b(news|latest|headline|update|announcement|hack|exploit|breaking)\b`)},
	{HintDefi, regexp.MustCompile(`(?i)\b(tvl|yield|apy|apr|farm|stake|liquidity|pool|swap|defi|protocol)\b`)},
	{HintAnalysis, regexp.MustCompile(`(?i)\b(analy[sz]|predict|forecast|outlook|bull|bear|support|resistance|technical|ta)\b`)},
	{HintFear, regexp.MustCompile(`(?i)\b(fear|greed|sentiment|index|mood)\b`)},
	{HintPortfolio, regexp.MustCompile(`(?i)\b(portfolio|holding|bag|position|pnl|profit|loss)\b`)},
	{HintSearch, regexp.MustCompile(`(?i)\b(search|find|look up|google|what is|who is|explain)\b`)},
}

var realtimePattern = regexp.MustCompile(`(?i)\b(now|today|current|live|latest|right now|at the moment|currently|this week)\b`)

// Classify maps a raw message to a structured [Intent]. It always returns a
// value; there is no failure mode.
//
// When more than one hint matches, the generic search hint is dropped: "look
// up"-style phrasing is a fallback signal only, superseded by any more
// specific category.
func Classify(message string) Intent {
	var hints []Hint
	for _, hp := range hintPatterns {
		if hp.pattern.MatchString(message) {
			hints = append(hints, hp.hint)
		}
	}

	if len(hints) > 1 {
		filtered := hints[:0]
		for _, h := range hints {
			if h != HintSearch {
				filtered = append(filtered, h)
			}
		}
		hints = filtered
	}

	complexity := ComplexityLow
	switch {
	case len(hints) > 2:
		complexity = ComplexityHigh
	case len(hints) > 0:
		complexity = ComplexityMedium
	}

	return Intent{
		NeedsRealtime: realtimePattern.MatchString(message) || len(hints) > 0,
		NeedsTools:    len(hints) > 0,
		Hints:         hints,
		Complexity:    complexity,
	}
}
