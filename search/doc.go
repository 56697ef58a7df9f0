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


// Package search answers prefix queries over ingested documents.
//
// Two interchangeable algorithms are provided. Scan reads every word blob
// once and checks each prefix as a whole word and as a raw substring.
// Indexed looks each prefix up in the token index, once as an exact token and
// once as a token prefix, while the filter index is resolved concurrently.
//
// Both weigh a whole-word hit as 10 and a partial hit as 1, summed over all
// prefixes, restrict candidates to the filter match set when filters are
// given, rank by weight descending then ID ascending, truncate to the limit
// and hydrate the survivors from the document table. IDs with no stored
// document are dropped. Every query reads from a single snapshot.
package search
