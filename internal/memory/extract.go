package memory

import "regexp"

// Rule maps a message pattern to a typed fact. Rules are evaluated in table
// order; each rule fires at most once per message.
type Rule struct {
	Pattern    *regexp.Regexp
	Type       FactType
	Value      string // canonical value, rendered as "<type>: <value>"
	Importance float64
}

// Extracted is one (type, text, importance) triple derived from a message.
type Extracted struct {
	Type       FactType
	Text       string
	Importance float64
}

// rules is the fixed extraction table. Importance reflects how much a fact
// should influence later retrieval: life-threatening conditions rank
// highest, generic temporal mentions lowest.
var rules = []Rule{
	// Conditions.
	{regexp.MustCompile(`(?i)can'?t\s+breathe|not\s+breathing|choking`), FactCondition, "breathing difficulty", 1.0},
	{regexp.MustCompile(`(?i)unconscious|passed\s+out|unresponsive`), FactCondition, "unconscious person", 0.95},
	{regexp.MustCompile(`(?i)bleeding|blood\s+loss|deep\s+cut`), FactCondition, "bleeding", 0.9},
	{regexp.MustCompile(`(?i)chest\s+pain|heart\s+attack`), FactCondition, "chest pain", 0.9},
	{regexp.MustCompile(`(?i)allergic|anaphyla`), FactCondition, "allergic reaction", 0.85},
	{regexp.MustCompile(`(?i)broken\s+(leg|arm|bone|ankle)|fracture`), FactCondition, "suspected fracture", 0.7},
	{regexp.MustCompile(`(?i)burn(ed|t|s)?\b|scald`), FactCondition, "burn injury", 0.7},

	// Environment.
	{regexp.MustCompile(`(?i)freezing|hypothermi|very\s+cold|ice\s+cold`), FactEnvironment, "extreme cold", 0.8},
	{regexp.MustCompile(`(?i)heat\s*stroke|overheat|extreme\s+heat|scorching`), FactEnvironment, "extreme heat", 0.8},
	{regexp.MustCompile(`(?i)storm|thunder|lightning|hurricane|tornado`), FactEnvironment, "severe storm", 0.7},
	{regexp.MustCompile(`(?i)snow(ing|storm)?\b|blizzard`), FactEnvironment, "snow conditions", 0.6},
	{regexp.MustCompile(`(?i)raining|heavy\s+rain|downpour|flood`), FactEnvironment, "wet conditions", 0.6},

	// Locations.
	{regexp.MustCompile(`(?i)forest|woods|woodland`), FactLocation, "forest", 0.7},
	{regexp.MustCompile(`(?i)mountain|ridge|summit|trail`), FactLocation, "mountains", 0.7},
	{regexp.MustCompile(`(?i)desert`), FactLocation, "desert", 0.7},
	{regexp.MustCompile(`(?i)river|lake|ocean|at\s+sea|beach`), FactLocation, "near water", 0.7},
	{regexp.MustCompile(`(?i)highway|roadside|car\s+broke`), FactLocation, "roadside", 0.6},
	{regexp.MustCompile(`(?i)\blost\b|middle\s+of\s+nowhere|remote\s+area|wilderness`), FactLocation, "remote area", 0.65},
	{regexp.MustCompile(`(?i)at\s+home|in\s+(the\s+)?(house|kitchen|garage)`), FactLocation, "at home", 0.5},

	// Resources.
	{regexp.MustCompile(`(?i)no\s+water|out\s+of\s+water|dehydrat`), FactResource, "no water", 0.8},
	{regexp.MustCompile(`(?i)no\s+food|out\s+of\s+food|starving`), FactResource, "no food", 0.7},
	{regexp.MustCompile(`(?i)no\s+(phone|signal|service|battery)|phone\s+(is\s+)?dead`), FactResource, "no communications", 0.7},
	{regexp.MustCompile(`(?i)first\s*aid\s*kit`), FactResource, "has first aid kit", 0.6},
	{regexp.MustCompile(`(?i)flashlight|torch|lighter|matches`), FactResource, "has light or fire source", 0.5},

	// Temporal.
	{regexp.MustCompile(`(?i)getting\s+dark|nightfall|at\s+night|after\s+dark`), FactTemporal, "nighttime", 0.5},
	{regexp.MustCompile(`(?i)for\s+\d+\s+days?|since\s+yesterday`), FactTemporal, "multi-day situation", 0.5},
	{regexp.MustCompile(`(?i)for\s+\d+\s+hours?|hours\s+ago`), FactTemporal, "hours elapsed", 0.4},
	{regexp.MustCompile(`(?i)this\s+morning|tonight|today`), FactTemporal, "same-day mention", 0.3},
}

// Extract derives facts from message text. Best-effort: unmatched input
// yields nil, never an error.
func Extract(message string) []Extracted {
	if message == "" {
		return nil
	}
	var out []Extracted
	for _, r := range rules {
		if r.Pattern.MatchString(message) {
			out = append(out, Extracted{
				Type:       r.Type,
				Text:       string(r.Type) + ": " + r.Value,
				Importance: r.Importance,
			})
		}
	}
	return out
}
