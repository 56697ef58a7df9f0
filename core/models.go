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

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is the caller-assigned unique identifier of a document.
// Zero is never a valid document ID.
type ID uint64

// Document is the canonical record held by the document store.
// Title, Desc and Filters are the only mutable fields; Payload is opaque
// to the engine and returned untouched on hydration.
type Document struct {
	Id      ID
	Title   string
	Desc    string
	Filters []string // Categorical attributes, keyed by position in the filter index
	Payload []byte   // Caller-owned value
}

// Text returns the indexable text of the document.
func (d *Document) Text() string {
	return d.Title + " " + d.Desc
}

// WordsRecord is the word blob derived from a document.
// Blob holds the deduplicated lowercase tokens joined by single spaces,
// with a leading and trailing space so that " token " is a whole-word match.
type WordsRecord struct {
	Id     ID
	Blob   string
	Digest uint64 // BLAKE2b-64 of Blob, used to detect unchanged content on update
}

// TokenRecord is the current token set derived from a document.
type TokenRecord struct {
	Id     ID
	Tokens []string
}

// IndexedDocument bundles a document with the records derived from it.
// The three are always written together.
type IndexedDocument struct {
	Document *Document
	Words    WordsRecord
	Tokens   TokenRecord
}

// SearchResult represents a ranked hit with its accumulated weight.
type SearchResult struct {
	Document *Document
	Weight   int
}

// Checkpoint records how far a long-running processor has progressed.
type Checkpoint struct {
	ProcessorType string
	LastID        ID
	UpdatedAt     time.Time
}

// DigestText returns a 64-bit BLAKE2b digest of text.
func DigestText(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return binary.LittleEndian.Uint64(h.Sum(nil))
}
