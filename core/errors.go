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

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidFeedback indicates a Feedback record failed validation.
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrEmptyGoal indicates an audit job has no goal text.
	ErrEmptyGoal = errors.New("audit goal cannot be empty")

	// ErrEmptyDocID indicates a document identifier is missing.
	ErrEmptyDocID = errors.New("document id cannot be empty")

	// ErrStatusRegression indicates an attempted job status transition that
	// would violate the monotonic lifecycle.
	ErrStatusRegression = errors.New("job status cannot regress")
)
