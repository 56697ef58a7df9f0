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


// Package ingestion writes documents and their derived indexes.
//
// The Pipeline type derives each document's token set and word blob and
// stores them together with the document in a single transaction:
//   - Ingest creates a document and fails on a duplicate ID
//   - Reingest replaces a document and its previous token set
//   - Delete removes a document and every index entry derived from it
//
// IngestBatch splits large inputs into chunks that are derived concurrently
// on a worker pool. Each chunk commits atomically on its own.
package ingestion
