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

// Package storage provides the storage abstraction layer for sift.
//
// This package defines the repository interfaces the ingestion pipeline and
// the query engine are written against. A DocumentRepository owns the
// canonical documents and keeps three derived structures consistent with them:
//
//   - Word blobs: one space-bounded string of lowercase tokens per document
//   - Token index: token -> document IDs, with exact and prefix range lookup
//   - Filter index: filter tuple -> document IDs, with wildcard range lookup
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return concrete types that
// satisfy these interfaces, checked at compile time:
//
//	var _ storage.DocumentRepository = (*DocumentRepository)(nil)
//
// # Usage
//
// Create a repository instance:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	repo := badger.NewDocumentRepository(backend)
//
// Use in tests with in-memory storage:
//
//	repo, checkpoints, backend, err := badger.NewMemoryRepositories()
//
// # Consistency
//
// Writes are atomic per call: a document and all of its index entries become
// visible together or not at all. WithSnapshot lets a reader issue several
// lookups, possibly from several goroutines, against one committed state.
//
// # Context Support
//
// All repository methods accept context.Context. Pass context.Background()
// for operations without specific timeout requirements.
package storage
