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

import "errors"

// Engine errors
var (
	// ErrConflict indicates a document with the same ID already exists.
	// Use a reingest to change an existing document.
	ErrConflict = errors.New("document already exists")

	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidQuery indicates query parameters were rejected.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrStorage indicates a failure in the underlying storage engine.
	ErrStorage = errors.New("storage error")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrZeroID indicates the document ID is zero.
	ErrZeroID = errors.New("document id must be positive")

	// ErrEmptyFilter indicates a stored filter value is the empty string.
	// Empty strings are wildcards and only valid in queries.
	ErrEmptyFilter = errors.New("filter value cannot be empty")

	// ErrInvalidFilterEncoding indicates a filter value is not valid UTF-8.
	ErrInvalidFilterEncoding = errors.New("filter value must be valid UTF-8")
)
