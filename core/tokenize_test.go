package core

import (
	"slices"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty input", "", []string{}},
		{"whitespace only", "  \t\n ", []string{}},
		{"lowercases", "Carrera GT s", []string{"carrera", "gt", "s"}},
		{"deduplicates after lowercasing", "car Car CAR car2", []string{"car", "car2"}},
		{"collapses runs of whitespace", "title  title1\ttitle2\n", []string{"title", "title1", "title2"}},
		{"keeps punctuation", "hello, world!", []string{"hello,", "world!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"Nissan almera passenger machine",
		"car Car2",
		"Carrera gt s super",
		"title title9901 title1 title1 title901 desc a b c",
	}

	for _, text := range inputs {
		once := Tokenize(text)
		twice := Tokenize(strings.Join(once, " "))
		if !slices.Equal(once, twice) {
			t.Errorf("Tokenize not idempotent for %q: %q vs %q", text, once, twice)
		}
	}
}

func TestWordBlob(t *testing.T) {
	if got := WordBlob([]string{"car", "car2"}); got != " car car2 " {
		t.Errorf("WordBlob() = %q, want %q", got, " car car2 ")
	}
	if got := WordBlob(nil); got != "  " {
		t.Errorf("WordBlob(nil) = %q, want %q", got, "  ")
	}
}

func TestNewIndexedDocument(t *testing.T) {
	doc := &Document{Id: 222222, Title: "car", Desc: "Car2", Filters: []string{"filter1", "filter3"}}
	indexed := NewIndexedDocument(doc)

	if indexed.Document != doc {
		t.Fatal("expected the source document to be carried through")
	}
	if indexed.Words.Id != doc.Id || indexed.Tokens.Id != doc.Id {
		t.Errorf("derived records carry wrong ids: words=%d tokens=%d", indexed.Words.Id, indexed.Tokens.Id)
	}
	if indexed.Words.Blob != " car car2 " {
		t.Errorf("Blob = %q, want %q", indexed.Words.Blob, " car car2 ")
	}
	if indexed.Words.Digest != DigestText(" car car2 ") {
		t.Error("Digest does not match blob digest")
	}
	if !slices.Equal(indexed.Tokens.Tokens, []string{"car", "car2"}) {
		t.Errorf("Tokens = %q", indexed.Tokens.Tokens)
	}
}

func TestDigestText(t *testing.T) {
	if DigestText(" car ") != DigestText(" car ") {
		t.Error("DigestText produced different digests for same content")
	}
	if DigestText(" car ") == DigestText(" car2 ") {
		t.Error("DigestText produced same digest for different content")
	}
}
