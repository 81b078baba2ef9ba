package threat

import "regexp"

// PatternCategory is one entry of the data-driven signature catalogue. Each
// matching category contributes its weight to the request's risk score, so
// the catalogue is unit-testable independent of the transport layer.
type PatternCategory struct {
	Name     string
	Weight   int
	patterns []*regexp.Regexp
}

// Match reports whether any pattern of the category matches the haystack.
func (c PatternCategory) Match(haystack string) bool {
	for _, p := range c.patterns {
		if p.MatchString(haystack) {
			return true
		}
	}
	return false
}

func category(name string, weight int, exprs ...string) PatternCategory {
	c := PatternCategory{Name: name, Weight: weight}
	for _, e := range exprs {
		c.patterns = append(c.patterns, regexp.MustCompile(e))
	}
	return c
}

// DefaultCatalogue returns the ordered signature catalogue. Weights are
// tuned so a single high-confidence signature (script injection, traversal,
// SQL tokens) clears the default block threshold on its own, while the
// softer heuristics only add up.
func DefaultCatalogue() []PatternCategory {
	return []PatternCategory{
		category("sql_injection", 30,
			`(?i)\bunion\s+(all\s+)?select\b`,
			`(?i)\b(select|delete)\s.+\sfrom\s`,
			`(?i)\binsert\s+into\b`,
			`(?i)\bdrop\s+table\b`,
			`(?i)'\s*or\s+'?\d+'?\s*=\s*'?\d+`,
			`(?i);\s*--`,
		),
		category("nosql_injection", 30,
			`\$(where|ne|gt|lt|gte|lte|nin|regex)\b`,
		),
		category("xss", 30,
			`(?i)<\s*script\b`,
			`(?i)javascript\s*:`,
			`(?i)\bon(error|load|click|mouseover)\s*=`,
			`(?i)<\s*iframe\b`,
		),
		category("path_traversal", 30,
			`\.\./`,
			`\.\.\\`,
			`(?i)%2e%2e(%2f|%5c)`,
		),
		category("shell_metacharacters", 20,
			"[;|`]\\s*(cat|ls|rm|wget|curl|nc|sh|bash)\\b",
			`\$\([^)]+\)`,
		),
		category("file_inclusion", 30,
			`(?i)\b(file|php|data|expect)://`,
		),
	}
}
