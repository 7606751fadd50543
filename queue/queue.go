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

// Package queue defines the task queue abstraction that decouples task
// submission from processing, plus in-memory and durable implementations.
package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/evidentia/core"
)

// Task kinds understood by the workers.
const (
	KindIngest = "process_document"
	KindAudit  = "run_audit"
)

// Envelope is the wire form of a queued task. Payload stays schemaless
// so each task kind can carry its own fields.
type Envelope struct {
	Kind    string         `json:"task_type"`
	ID      string         `json:"task_id"`
	Payload map[string]any `json:"payload"`
}

// NewTaskID generates a fresh task identifier for a task kind.
func NewTaskID(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}

// TaskQueue is the at-least-once task transport between producers and
// workers.
//
// Dequeue filters by task kind: an envelope of a different kind at the
// head is re-inserted at the tail so a consumer for the other kind can
// pick it up. Dequeue returns (nil, nil) when no matching task is
// available; callers poll.
type TaskQueue interface {
	Enqueue(ctx context.Context, env *Envelope) error
	Dequeue(ctx context.Context, kind string) (*Envelope, error)
	Status(ctx context.Context, taskID string) (core.TaskStatus, error)
	SetStatus(ctx context.Context, taskID string, status core.TaskStatus) error
	Close() error
}
