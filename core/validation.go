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

import (
	"fmt"
	"unicode/utf8"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - ID must not be zero
//   - Every filter value must be non-empty valid UTF-8
//
// NOT validated:
//   - Title and Desc (an empty document indexes no tokens)
//   - Payload (opaque)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Id == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrZeroID)
	}

	for i, filter := range doc.Filters {
		if err := ValidateFilterValue(filter); err != nil {
			return fmt.Errorf("%w: filter %d: %w", ErrInvalidDocument, i, err)
		}
	}

	return nil
}

// ValidateFilterValue checks a single stored filter value.
func ValidateFilterValue(value string) error {
	if value == "" {
		return ErrEmptyFilter
	}
	if !utf8.ValidString(value) {
		return ErrInvalidFilterEncoding
	}
	return nil
}
