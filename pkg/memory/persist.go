package memory

import "regexp"

// PersistDecision is the outcome of evaluating a user message for long-term
// persistence.
type PersistDecision struct {
	// Should reports whether the message is worth persisting at all.
	Should bool

	// Type is the classification to store the memory under.
	Type MemoryType

	// Importance is the fixed score in [0,1] associated with the matched rule.
	Importance float64
}

var (
	portfolioPattern  = regexp.MustCompile(`(?i)\b(i (hold|have|own|bought)|my (portfolio|bag|position|holdings?))\b`)
	preferencePattern = regexp.MustCompile(`(?i)\b(i (prefer|like|want|always|usually|mostly)|remember that|my favou?rite)\b`)
	rememberPattern   = regexp.MustCompile(`(?i)\b(remember|save|note|keep in mind)\b`)
)

// ShouldPersist decides whether a user message contains information worth
// writing to long-term memory. It is a pure rule-based classifier over the
// user's message (never the assistant's reply): portfolio statements score
// highest among implicit signals, explicit save requests highest overall.
// Everything else is classified as an ordinary interaction and not persisted.
func ShouldPersist(message string) PersistDecision {
	switch {
	case portfolioPattern.MatchString(message):
		return PersistDecision{Should: true, Type: TypePortfolio, Importance: 0.8}

	case preferencePattern.MatchString(message):
		return PersistDecision{Should: true, Type: TypePreference, Importance: 0.7}

	case rememberPattern.MatchString(message):
		return PersistDecision{Should: true, Type: TypePreference, Importance: 0.9}
	}

	return PersistDecision{Should: false, Type: TypeInteraction, Importance: 0.3}
}
