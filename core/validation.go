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

import "fmt"

// ValidateDocument validates a Document before persistence.
//
// Validation rules:
//   - Id must be present (derived idempotency key)
//   - Title must not be empty (processing substitutes a placeholder upstream)
//
// NOT validated:
//   - Vector (a document may be stored before re-embedding)
//   - Content (empty content is tolerated)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocID)
	}

	if doc.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidDocument)
	}

	return nil
}

// ValidateFeedback validates a Feedback record before it is appended.
func ValidateFeedback(f *Feedback) error {
	if f == nil {
		return fmt.Errorf("%w: feedback is nil", ErrInvalidFeedback)
	}

	if f.JobID == "" {
		return fmt.Errorf("%w: job id cannot be empty", ErrInvalidFeedback)
	}

	if f.DocID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, ErrEmptyDocID)
	}

	if f.Kind == "" {
		return fmt.Errorf("%w: feedback kind cannot be empty", ErrInvalidFeedback)
	}

	return nil
}
