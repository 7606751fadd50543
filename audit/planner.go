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

// Package audit runs audit jobs: goal decomposition, similarity search
// over the document store, evidence aggregation, and LLM synthesis.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/poiesic/evidentia/ai"
	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/storage"
)

// Planner tuning knobs.
const (
	// candidateLimit bounds the working set of documents per audit run.
	candidateLimit = 100
	// topKPerSubquery is how many evidence items each subquery contributes.
	topKPerSubquery = 5
	// recallWindow is how many top evidence scores feed the recall estimate.
	recallWindow = 10
	// evidencePersistLimit caps evidence stored in the job results payload.
	evidencePersistLimit = 20
	// synthesisMaxTokens bounds the model's summary length.
	synthesisMaxTokens = 500
)

// JobStore is the job persistence surface the planner needs.
type JobStore interface {
	GetJob(ctx context.Context, id string) (*core.AuditJob, error)
	UpdateJobStatus(ctx context.Context, id string, next core.JobStatus) error
	SetJobProgress(ctx context.Context, id string, progress float64) error
	CompleteJob(ctx context.Context, id string, results *core.AuditResult) error
	FailJob(ctx context.Context, id string, cause string) error
}

// Planner executes audit jobs against the document store.
type Planner struct {
	docs      storage.DocumentStore
	embedder  ai.Embedder
	generator ai.Generator
	jobs      JobStore
	monitor   Monitor
	logger    *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner) error

// WithMonitor attaches hooks observing each audit run.
func WithMonitor(m Monitor) PlannerOption {
	return func(p *Planner) error {
		if m == nil {
			m = &noopMonitor{}
		}
		p.monitor = m
		return nil
	}
}

// WithPlannerLogger sets the logger.
func WithPlannerLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) error {
		p.logger = logger
		return nil
	}
}

// NewPlanner creates an audit planner.
func NewPlanner(docs storage.DocumentStore, embedder ai.Embedder, generator ai.Generator, jobs JobStore, opts ...PlannerOption) (*Planner, error) {
	if docs == nil {
		return nil, ErrDocumentStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if jobs == nil {
		return nil, ErrJobStoreRequired
	}

	p := &Planner{
		docs:      docs,
		embedder:  embedder,
		generator: generator,
		jobs:      jobs,
		monitor:   &noopMonitor{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "planner")
	return p, nil
}

// Decompose expands an audit goal into the subqueries searched on its
// behalf. The goal itself always comes first.
func Decompose(goal string) []string {
	return []string{
		goal,
		"verify " + goal,
		"evidence for " + goal,
	}
}

// Run executes the audit job through to a terminal state. Any failure is
// recorded on the job before the error is returned, so callers observing
// the job see the same outcome.
func (p *Planner) Run(ctx context.Context, jobID string) error {
	job, err := p.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading audit job: %w", err)
	}

	if err := p.jobs.UpdateJobStatus(ctx, jobID, core.JobProcessing); err != nil {
		return err
	}

	result, err := p.execute(ctx, job)
	if err != nil {
		p.logger.Error("audit run failed", "job_id", jobID, "error", err)
		if failErr := p.jobs.FailJob(ctx, jobID, err.Error()); failErr != nil {
			p.logger.Error("recording job failure failed", "job_id", jobID, "error", failErr)
		}
		return err
	}

	if err := p.jobs.CompleteJob(ctx, jobID, result); err != nil {
		return err
	}
	p.logger.Info("audit complete", "job_id", jobID, "goal", job.Goal, "evidence", result.TotalEvidence)
	return nil
}

func (p *Planner) execute(ctx context.Context, job *core.AuditJob) (*core.AuditResult, error) {
	p.monitor.Start(job.Goal)

	subqueries := Decompose(job.Goal)
	p.monitor.AfterDecompose(subqueries)
	_ = p.jobs.SetJobProgress(ctx, job.Id, 10)

	candidates, err := p.docs.GetRecentDocuments(ctx, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("loading candidate documents: %w", err)
	}

	// Gather evidence per subquery; first writer wins on duplicates.
	seen := make(map[core.DocID]bool)
	var evidence []core.EvidenceItem
	progressPerQuery := 60.0 / float64(len(subqueries))

	for i, subquery := range subqueries {
		items, err := p.searchSubquery(ctx, subquery, candidates)
		if err != nil {
			return nil, err
		}
		p.monitor.AfterSubquerySearch(subquery, items)

		for _, item := range items {
			if seen[item.DocID] {
				continue
			}
			seen[item.DocID] = true
			evidence = append(evidence, item)
		}

		_ = p.jobs.SetJobProgress(ctx, job.Id, 10+progressPerQuery*float64(i+1))
	}

	// Merging per-subquery lists loses global order; restore it.
	sort.SliceStable(evidence, func(i, j int) bool {
		return evidence[i].Score > evidence[j].Score
	})
	p.monitor.AfterDeduplication(evidence)

	precision, recall := scoreEvidence(evidence)
	_ = p.jobs.SetJobProgress(ctx, job.Id, 80)

	summary, err := p.synthesize(ctx, job.Goal, evidence)
	if err != nil {
		return nil, err
	}
	p.monitor.AfterSynthesis(summary)
	_ = p.jobs.SetJobProgress(ctx, job.Id, 95)

	persisted := evidence
	if len(persisted) > evidencePersistLimit {
		persisted = persisted[:evidencePersistLimit]
	}

	result := &core.AuditResult{
		Goal:            job.Goal,
		TotalEvidence:   len(evidence),
		Precision:       precision,
		Recall:          recall,
		Evidence:        persisted,
		Summary:         summary,
		Recommendations: defaultRecommendations(),
	}
	p.monitor.Finish(result)
	return result, nil
}

// searchSubquery embeds the subquery and ranks the candidate documents by
// cosine similarity, returning the top K as evidence items.
func (p *Planner) searchSubquery(ctx context.Context, subquery string, candidates []*core.Document) ([]core.EvidenceItem, error) {
	queryVector, err := p.embedder.EmbedText(ctx, subquery)
	if err != nil {
		return nil, fmt.Errorf("embedding subquery %q: %w", subquery, err)
	}

	scored := make([]core.EvidenceItem, 0, len(candidates))
	for _, doc := range candidates {
		if len(doc.Vector) == 0 {
			continue
		}
		scored = append(scored, core.EvidenceItem{
			DocID:    doc.Id,
			Title:    doc.Title,
			Snippet:  snippet(doc.Content),
			Score:    ai.CosineSimilarity(queryVector, doc.Vector),
			Metadata: doc.Metadata,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topKPerSubquery {
		scored = scored[:topKPerSubquery]
	}
	return scored, nil
}

// synthesize asks the generator for a summary. Generators fall back to a
// canned report on model failure, so the only error surfaced here is
// context cancellation.
func (p *Planner) synthesize(ctx context.Context, goal string, evidence []core.EvidenceItem) (string, error) {
	prompt := BuildSynthesisPrompt(goal, evidence)
	summary, err := p.generator.Generate(ctx, prompt, synthesisMaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		p.logger.Warn("generator failed, using fallback summary", "error", err)
		return ai.FallbackSummary(prompt), nil
	}
	return summary, nil
}

// scoreEvidence derives the coarse evidence quality metrics.
// Precision marks whether any evidence surfaced at all; recall averages
// the top scores against a perfect-score window.
func scoreEvidence(evidence []core.EvidenceItem) (precision, recall float64) {
	if len(evidence) == 0 {
		return 0, 0
	}
	precision = 1

	var sum float64
	for i, item := range evidence {
		if i >= recallWindow {
			break
		}
		sum += item.Score
	}
	recall = sum / recallWindow
	if recall > 1 {
		recall = 1
	}
	return precision, recall
}

func defaultRecommendations() []string {
	return []string{
		"Review the highest-scored evidence documents for compliance.",
		"Collect feedback on evidence relevance to sharpen future audits.",
		"Schedule a follow-up audit for areas with thin evidence.",
	}
}

// snippet returns the leading content excerpt used in evidence items.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= core.SnippetLen {
		return content
	}
	return string(runes[:core.SnippetLen])
}
