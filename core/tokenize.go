// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "strings"

// Tokenize splits text on whitespace, lowercases each piece and removes
// duplicates. Tokens keep the order of their first occurrence.
// No stop words are removed and no stemming is applied.
func Tokenize(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))

	for _, field := range fields {
		token := strings.ToLower(field)
		if _, exists := seen[token]; exists {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}

	return tokens
}

// WordBlob joins tokens into a word blob bounded by single spaces.
// An empty token list yields "  ".
func WordBlob(tokens []string) string {
	return " " + strings.Join(tokens, " ") + " "
}

// NewIndexedDocument derives the word blob and token set of doc.
func NewIndexedDocument(doc *Document) *IndexedDocument {
	tokens := Tokenize(doc.Text())
	blob := WordBlob(tokens)
	return &IndexedDocument{
		Document: doc,
		Words: WordsRecord{
			Id:     doc.Id,
			Blob:   blob,
			Digest: DigestText(blob),
		},
		Tokens: TokenRecord{
			Id:     doc.Id,
			Tokens: tokens,
		},
	}
}
