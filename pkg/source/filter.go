package source

import "strings"

// Filter holds keyword lists for case-insensitive content matching.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a filter. An empty keyword list matches everything that is
// not excluded.
func NewFilter(keywords, excludeKeywords []string) *Filter {
	f := &Filter{
		keywords: make([]string, 0, len(keywords)),
		exclude:  make([]string, 0, len(excludeKeywords)),
	}
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.keywords = append(f.keywords, kw)
		}
	}
	for _, kw := range excludeKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.exclude = append(f.exclude, kw)
		}
	}
	return f
}

// Match reports whether text passes the filter. A nil filter matches everything.
func (f *Filter) Match(text string) bool {
	if f == nil {
		return true
	}
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}

	if len(f.keywords) == 0 {
		return true
	}
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
