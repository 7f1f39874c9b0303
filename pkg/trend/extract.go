package trend

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopTerms are too generic to track even when capitalized.
var stopTerms = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "has": true,
	"have": true, "will": true, "can": true, "but": true, "not": true,
	"you": true, "all": true, "they": true, "their": true, "its": true,
	"our": true, "your": true, "one": true, "two": true, "new": true,
	"more": true, "how": true, "what": true, "when": true, "who": true,
	"why": true, "would": true, "could": true, "should": true, "about": true,
	"into": true, "than": true, "been": true, "just": true, "also": true,
	"some": true, "very": true, "most": true, "like": true, "over": true,
	"after": true, "before": true, "between": true, "under": true,
	"through": true, "during": true, "first": true, "last": true,
	"next": true, "other": true, "many": true, "much": true, "each": true,
	"every": true, "both": true, "any": true,
}

var (
	// A capitalized word may carry hyphenated parts (GPT-5, Llama-3-70B);
	// consecutive capitalized words merge into one phrase.
	capsPattern    = regexp.MustCompile(`\b[A-Z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)*(?:\s+[A-Z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)*)*\b`)
	acronymPattern = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	tagPattern     = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
)

// ExtractTerms pulls candidate trend terms out of free text: capitalized
// phrases, then standalone acronyms, then #tags. Terms are returned in
// discovery order and are not deduplicated; an acronym inside a phrase is
// reported twice on purpose, as both count as mentions.
func ExtractTerms(text string) []string {
	if text == "" {
		return nil
	}

	var terms []string

	for _, m := range capitalizedPhrases(text) {
		if len(m) >= 2 && !stopTerms[strings.ToLower(m)] {
			terms = append(terms, m)
		}
	}

	for _, loc := range acronymPattern.FindAllStringIndex(text, -1) {
		m := text[loc[0]:loc[1]]
		if wordBoundary(text, loc[0], loc[1]) && !stopTerms[strings.ToLower(m)] {
			terms = append(terms, m)
		}
	}

	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		terms = append(terms, m[1])
	}

	return terms
}

// capitalizedPhrases finds capsPattern matches whose edges are word
// boundaries in the Unicode sense. RE2's \b only knows ASCII, so a match
// that stops at an accented letter is cut back to the last hyphen or space
// that is a real boundary, or dropped.
func capitalizedPhrases(text string) []string {
	var out []string
	for pos := 0; pos < len(text); {
		loc := capsPattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]

		if r, _ := utf8.DecodeLastRuneInString(text[:start]); start > 0 && isWordRune(r) {
			// Starts mid-word: resume after that word.
			skip := strings.IndexFunc(text[start:], unicode.IsSpace)
			if skip < 0 {
				break
			}
			pos = start + skip
			continue
		}

		if e := boundaryEnd(text, start, end); e > start {
			out = append(out, strings.TrimSpace(text[start:e]))
			pos = e
			continue
		}
		pos = end
	}
	return out
}

// boundaryEnd shortens text[start:end] until the rune after it is not a word
// rune, dropping trailing words and hyphenated parts. It returns -1 when
// nothing is left.
func boundaryEnd(text string, start, end int) int {
	for end > start {
		if r, _ := utf8.DecodeRuneInString(text[end:]); end == len(text) || !isWordRune(r) {
			return end
		}
		cut := strings.LastIndexFunc(text[start:end], func(r rune) bool {
			return r == '-' || unicode.IsSpace(r)
		})
		if cut < 0 {
			return -1
		}
		end = start + len(strings.TrimRightFunc(text[start:start+cut], unicode.IsSpace))
	}
	return -1
}

func wordBoundary(text string, start, end int) bool {
	if r, _ := utf8.DecodeLastRuneInString(text[:start]); start > 0 && isWordRune(r) {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(text[end:]); end < len(text) && isWordRune(r) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
