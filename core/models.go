package core

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Size caps applied during document processing.
const (
	// MaxContentLen is the maximum stored content length in runes.
	MaxContentLen = 5000
	// EmbedContentLen is the content prefix length used for embedding input.
	EmbedContentLen = 500
	// SnippetLen is the evidence snippet length in runes.
	SnippetLen = 200
)

// MetadataShardKey is the reserved metadata key carrying the derived shard label.
const MetadataShardKey = "shard_id"

// DocID is a document identifier. It doubles as the idempotency key:
// the same (title, source, date) triple always produces the same DocID.
type DocID string

// DocIDFor derives the idempotency key for a document from its title, source
// and ingestion date using BLAKE2b hashing truncated to 8 bytes (16 hex chars).
// Re-ingesting the same title/source on the same calendar day yields the same
// key, which is the de-duplication mechanism for ingestion.
func DocIDFor(title, source string, date time.Time) DocID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 16 hex characters
	fmt.Fprintf(h, "%s_%s_%s", title, source, date.UTC().Format("2006-01-02"))
	return DocID(hex.EncodeToString(h.Sum(nil)))
}

// ShardFor derives an advisory shard label from document metadata.
// The label is a deterministic hash of the source and department fields
// modulo workerCount. It is informational only; nothing routes on it yet.
func ShardFor(metadata map[string]string, workerCount int) string {
	if workerCount < 1 {
		workerCount = 1
	}
	h, _ := blake2b.New(8, nil)
	h.Write([]byte(metadata["source"] + "_" + metadata["department"]))
	sum := h.Sum(nil)
	idx := binary.LittleEndian.Uint64(sum) % uint64(workerCount)
	return fmt.Sprintf("shard_%d", idx)
}

// Document is a persisted, embedded document record.
type Document struct {
	Id        DocID
	Title     string
	Content   string // capped at MaxContentLen
	Vector    []float32
	Metadata  map[string]string // always carries MetadataShardKey after processing
	Source    string
	CreatedAt time.Time
}

// ShardID returns the shard label attached during processing, or "" if the
// document has not been processed yet.
func (d *Document) ShardID() string {
	return d.Metadata[MetadataShardKey]
}

// TaskStatus tracks the lifecycle of a queued task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskNotFound   TaskStatus = "not_found"
)

// JobStatus tracks the lifecycle of an audit job.
// Transitions are monotonic: pending -> processing -> (completed | failed).
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

var jobStatusRank = map[JobStatus]int{
	JobPending:    0,
	JobProcessing: 1,
	JobCompleted:  2,
	JobFailed:     2,
}

// CanTransition reports whether moving from s to next honors the monotonic
// job lifecycle. Terminal states never transition, and a status never
// regresses to an earlier one.
func (s JobStatus) CanTransition(next JobStatus) bool {
	from, ok := jobStatusRank[s]
	if !ok {
		return false
	}
	to, ok := jobStatusRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Outcome is the terminal outcome of processing a single document.
type Outcome string

const (
	// OutcomeSuccess indicates a new document record was persisted.
	OutcomeSuccess Outcome = "success"
	// OutcomeDuplicate indicates the idempotency key already existed.
	// Duplicates are a successful outcome, not an error.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeFailed indicates processing exhausted its retry budget.
	OutcomeFailed Outcome = "failed"
)

// ProcessingResult is the terminal result of processing one document.
type ProcessingResult struct {
	Status           Outcome  `json:"status"`
	DocID            DocID    `json:"doc_id,omitempty"`
	ShardID          string   `json:"shard_id,omitempty"`
	Title            string   `json:"title,omitempty"`
	Error            string   `json:"error,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
}

// Succeeded reports whether the result counts as successful.
// Duplicates count: the document is stored either way.
func (r *ProcessingResult) Succeeded() bool {
	return r.Status == OutcomeSuccess || r.Status == OutcomeDuplicate
}

// EvidenceItem is a scored document snippet surfaced for an audit goal.
// Evidence is ephemeral: it exists only inside one audit run and its
// persisted result payload.
type EvidenceItem struct {
	DocID    DocID             `json:"doc_id"`
	Title    string            `json:"title"`
	Snippet  string            `json:"snippet"`
	Score    float64           `json:"relevance_score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// AuditResult is the structured payload of a completed audit job.
type AuditResult struct {
	Goal            string         `json:"goal"`
	TotalEvidence   int            `json:"total_evidence"`
	Precision       float64        `json:"precision"`
	Recall          float64        `json:"recall"`
	Evidence        []EvidenceItem `json:"evidence"`
	Summary         string         `json:"summary"`
	Recommendations []string       `json:"recommendations"`
}

// AuditJob is a persisted audit job record.
type AuditJob struct {
	Id        string
	Goal      string
	Scope     string
	Status    JobStatus
	Progress  float64 // 0-100
	Results   *AuditResult
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Feedback records a human judgment on a piece of evidence.
// Feedback rows are write-once and append-only.
type Feedback struct {
	Id        string
	JobID     string
	DocID     DocID
	Kind      string // relevant, irrelevant, needs_review
	Comment   string
	CreatedAt time.Time
}
