package source

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
)

// MaxSummaryLength bounds article summaries produced by collectors.
const MaxSummaryLength = 300

const urlNormalizeFlags = purell.FlagsSafe | purell.FlagRemoveFragment | purell.FlagRemoveDuplicateSlashes

// CleanHTML strips markup from s and collapses whitespace.
func CleanHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	text := s
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens text to at most maxLen bytes, cutting at the last word
// boundary and appending an ellipsis.
func Truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	cut := text[:maxLen]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return strings.TrimRight(cut, ".,;: ") + "..."
}

// HashURL returns a short stable hash of a link, normalizing it first so that
// cosmetic differences (case of host, fragments, default ports) do not defeat
// deduplication.
func HashURL(link string) string {
	normalized, err := purell.NormalizeURLString(link, urlNormalizeFlags)
	if err != nil {
		normalized = link
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

func publishedOrNil(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
