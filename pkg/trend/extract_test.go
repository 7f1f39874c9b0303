package trend

import (
	"reflect"
	"testing"
)

func TestExtractTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"hyphenated model name and its acronym", "OpenAI released GPT-5 today", []string{"OpenAI", "GPT-5", "GPT"}},
		{"consecutive capitalized words merge", "the Federal Reserve raised rates", []string{"Federal Reserve"}},
		{"stop term alone is dropped", "The market", nil},
		{"single letter is dropped", "I think so", nil},
		{"acronyms counted twice", "NASA and ESA agree", []string{"NASA", "ESA", "NASA", "ESA"}},
		{"acronym stop term", "ALL of it", nil},
		{"tags", "shipping #golang and #rust_lang", []string{"golang", "rust_lang"}},
		{"no matches", "nothing to see here", nil},
		{"accented word is not cut short", "Pokémon Legends news", []string{"Legends"}},
		{"trailing accent drops the word", "Nestlé recall", nil},
		{"accent inside first word", "Señor Frog", []string{"Frog"}},
		{"single capital before accent", "São Paulo", []string{"Paulo"}},
		{"phrase stops before accented word", "Super Pokémon Go", []string{"Super", "Go"}},
		{"hyphen part with accent is dropped", "Foo-Baré wins", []string{"Foo"}},
		{"acronym glued to accent", "NASAé and ESA", []string{"ESA", "ESA"}},
		{"unicode tag", "fans of #Pokémon", []string{"Pokémon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTerms(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractTerms(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractTermsAcronymInsideWordIgnored(t *testing.T) {
	t.Parallel()

	// "AI" inside "OpenAI" has no word boundary, so only the phrase counts.
	got := ExtractTerms("OpenAI")
	if !reflect.DeepEqual(got, []string{"OpenAI"}) {
		t.Fatalf("got %q", got)
	}
}
