package vectorizer

import (
	"regexp"
	"sort"
	"strings"
)

// capitalizedBigramPattern matches two consecutive capitalized words
// ("Machine Learning", "New York") — a cheap stand-in for named-entity
// recognition.
var capitalizedBigramPattern = regexp.MustCompile(`\b([A-Z][a-z]+)\s+([A-Z][a-z]+)\b`)

// acronymPattern matches all-caps tokens of 2+ letters (API, NASA, ML).
var acronymPattern = regexp.MustCompile(`\b[A-Z]{2,}\b`)

// datePattern matches numeric dates (1/2/2024, 01-02-24) and month-name
// dates (January 5, Jan 5th).
var datePattern = regexp.MustCompile(`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b|\b(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2}(st|nd|rd|th)?\b`)

// timePattern matches clock times (3pm, 10:30, 9:45am).
var timePattern = regexp.MustCompile(`\b\d{1,2}(:\d{2})?\s?(am|pm|AM|PM)\b|\b\d{1,2}:\d{2}\b`)

// currencyPattern matches currency tokens ($19.99, $5).
var currencyPattern = regexp.MustCompile(`\$\d+(\.\d{1,2})?`)

// agoPattern matches relative time phrases ("2 hours ago", "a day ago").
var agoPattern = regexp.MustCompile(`\b(\d+|an?)\s+(second|minute|hour|day|week|month|year)s?\s+ago\b`)

// topicTaxonomy is a small closed set of topics matched by keyword bag.
var topicTaxonomy = map[string][]string{
	"machine learning": {"machine learning", "neural network", "deep learning", "model training", "dataset", "ml model"},
	"programming":      {"code", "function", "bug", "programming", "compile", "variable", "algorithm", "repository"},
	"finance":          {"budget", "invoice", "payment", "invest", "stock", "finance", "expense", "revenue"},
	"health":           {"doctor", "symptom", "medication", "diagnosis", "health", "hospital", "therapy"},
	"travel":           {"flight", "hotel", "itinerary", "travel", "trip", "vacation", "passport"},
	"food":             {"recipe", "restaurant", "lunch", "dinner", "breakfast", "cuisine", "meal"},
	"weather":          {"weather", "forecast", "rain", "temperature", "humidity", "storm"},
	"sports":           {"match", "tournament", "score", "team", "league", "sports", "game"},
	"music":            {"song", "album", "concert", "playlist", "music", "band"},
	"movies":           {"movie", "film", "cinema", "actor", "director", "trailer"},
	"work":             {"meeting", "deadline", "project", "client", "report", "presentation"},
	"education":        {"homework", "exam", "lecture", "course", "assignment", "study"},
	"shopping":         {"order", "cart", "checkout", "discount", "shipping", "purchase"},
	"technology":       {"software", "hardware", "device", "server", "cloud", "technology", "app"},
}

// ExtractEntities returns a deterministic, deduplicated, sorted set of
// entity-like tokens: capitalized bigrams, dates, times, currency amounts,
// and all-caps acronyms.
func ExtractEntities(text string) []string {
	set := make(map[string]bool)

	for _, m := range capitalizedBigramPattern.FindAllString(text, -1) {
		set[m] = true
	}
	for _, m := range datePattern.FindAllString(text, -1) {
		set[strings.TrimSpace(m)] = true
	}
	for _, m := range timePattern.FindAllString(text, -1) {
		set[strings.TrimSpace(m)] = true
	}
	for _, m := range currencyPattern.FindAllString(text, -1) {
		set[m] = true
	}
	for _, m := range acronymPattern.FindAllString(text, -1) {
		set[m] = true
	}

	return sortedKeys(set)
}

// ExtractTopics matches text's lowercased content against a closed keyword
// taxonomy, returning every topic with at least one keyword hit.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	set := make(map[string]bool)
	for topic, keywords := range topicTaxonomy {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				set[topic] = true
				break
			}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
