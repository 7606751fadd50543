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

// Package evidentia wires the document audit pipeline together: the
// document and result stores, the job database, the task queue, the
// ingest workers and the audit planner, behind one System facade.
package evidentia

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/poiesic/evidentia/ai"
	"github.com/poiesic/evidentia/ai/openai"
	"github.com/poiesic/evidentia/audit"
	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/pipeline"
	"github.com/poiesic/evidentia/queue"
	"github.com/poiesic/evidentia/storage"
	storagebadger "github.com/poiesic/evidentia/storage/badger"
	"github.com/poiesic/evidentia/storage/sqlite"
)

// System is the assembled audit pipeline.
type System struct {
	backend    *storagebadger.Backend
	docs       storage.DocumentStore
	results    storage.ResultStore
	jobDB      *sqlite.DB
	jobs       *sqlite.JobRepository
	tasks      queue.TaskQueue
	provider   ai.Provider
	processor  *pipeline.Processor
	batch      *pipeline.Coordinator
	consumer   *pipeline.Consumer
	dispatcher *audit.Dispatcher
	logger     *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig     *ai.Config
	provider     ai.Provider
	inMemory     bool
	durableQueue bool
	maxWorkers   int
	batchSize    int
	logger       *slog.Logger
}

// WithAIConfig overrides the model endpoint configuration.
func WithAIConfig(cfg *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider injects a pre-built AI provider, bypassing the OpenAI
// client setup. Used by tests and embedders with custom transports.
func WithProvider(p ai.Provider) SystemOption {
	return func(o *systemOptions) {
		o.provider = p
	}
}

// WithInMemory keeps all state in memory. Nothing survives Close.
func WithInMemory() SystemOption {
	return func(o *systemOptions) {
		o.inMemory = true
	}
}

// WithDurableQueue persists queued tasks in BadgerDB so they survive
// restarts. Ignored for in-memory systems.
func WithDurableQueue() SystemOption {
	return func(o *systemOptions) {
		o.durableQueue = true
	}
}

// WithMaxWorkers sets the worker count used for shard derivation and
// batch concurrency.
func WithMaxWorkers(n int) SystemOption {
	return func(o *systemOptions) {
		o.maxWorkers = n
	}
}

// WithSystemLogger sets the logger.
func WithSystemLogger(logger *slog.Logger) SystemOption {
	return func(o *systemOptions) {
		o.logger = logger
	}
}

// Open assembles a System rooted at dataDir. The document store lives
// under dataDir/documents and the job database at dataDir/jobs.db.
func Open(dataDir string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig:   ai.DefaultConfig(),
		maxWorkers: pipeline.DefaultBatchConcurrency,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	var backend *storagebadger.Backend
	var err error
	if options.inMemory {
		backend, err = storagebadger.OpenBackend("", true)
	} else {
		backend, err = storagebadger.OpenBackend(filepath.Join(dataDir, "documents"), false)
	}
	if err != nil {
		return nil, err
	}

	docs := storagebadger.NewDocumentRepository(backend)
	results := storagebadger.NewResultRepository(backend)

	jobPath := ":memory:"
	if !options.inMemory {
		jobPath = filepath.Join(dataDir, "jobs.db")
	}
	jobDB, err := sqlite.Open(jobPath)
	if err != nil {
		backend.Close()
		return nil, err
	}
	jobs := sqlite.NewJobRepository(jobDB)

	var tasks queue.TaskQueue
	if options.durableQueue && !options.inMemory {
		tasks, err = queue.NewBadgerQueue(backend, options.logger)
		if err != nil {
			jobDB.Close()
			backend.Close()
			return nil, err
		}
	} else {
		tasks = queue.NewMemoryQueue()
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			tasks.Close()
			jobDB.Close()
			backend.Close()
			return nil, err
		}
	}

	processor, err := pipeline.NewProcessor(provider.Embedder(), docs,
		pipeline.WithWorkerCount(options.maxWorkers),
		pipeline.WithProcessorLogger(options.logger))
	if err != nil {
		provider.Close()
		tasks.Close()
		jobDB.Close()
		backend.Close()
		return nil, err
	}

	batch, err := pipeline.NewCoordinator(processor, options.maxWorkers, options.logger)
	if err != nil {
		provider.Close()
		tasks.Close()
		jobDB.Close()
		backend.Close()
		return nil, err
	}

	planner, err := audit.NewPlanner(docs, provider.Embedder(), provider.Generator(), jobs,
		audit.WithPlannerLogger(options.logger))
	if err != nil {
		batch.Release()
		provider.Close()
		tasks.Close()
		jobDB.Close()
		backend.Close()
		return nil, err
	}

	dispatcher, err := audit.NewDispatcher(tasks, planner, options.logger)
	if err != nil {
		batch.Release()
		provider.Close()
		tasks.Close()
		jobDB.Close()
		backend.Close()
		return nil, err
	}

	return &System{
		backend:    backend,
		docs:       docs,
		results:    results,
		jobDB:      jobDB,
		jobs:       jobs,
		tasks:      tasks,
		provider:   provider,
		processor:  processor,
		batch:      batch,
		consumer:   pipeline.NewConsumer(tasks, processor, results, options.logger),
		dispatcher: dispatcher,
		logger:     options.logger,
	}, nil
}

// StartWorkers launches the ingest consumer and the audit dispatcher.
func (s *System) StartWorkers(ctx context.Context) {
	s.consumer.Start(ctx)
	s.dispatcher.Start(ctx)
}

// StopWorkers stops both workers, waiting for in-flight tasks.
func (s *System) StopWorkers() {
	s.consumer.Stop()
	s.dispatcher.Stop()
}

// EnqueueDocument submits a document for asynchronous processing and
// returns the task ID to poll.
func (s *System) EnqueueDocument(ctx context.Context, raw pipeline.RawDocument) (string, error) {
	taskID := queue.NewTaskID(queue.KindIngest)
	payload := map[string]any{
		"title":   raw.Title,
		"content": raw.Content,
		"source":  raw.Source,
	}
	if raw.Metadata != nil {
		payload["metadata"] = raw.Metadata
	}

	err := s.tasks.Enqueue(ctx, &queue.Envelope{
		Kind:    queue.KindIngest,
		ID:      taskID,
		Payload: payload,
	})
	if err != nil {
		return "", err
	}
	return taskID, nil
}

// ProcessBatch processes documents synchronously with bounded concurrency.
func (s *System) ProcessBatch(ctx context.Context, docs []pipeline.RawDocument) (*pipeline.BatchResult, error) {
	return s.batch.ProcessBatch(ctx, docs)
}

// SubmitAudit creates an audit job and queues it for the dispatcher.
// Returns the job ID.
func (s *System) SubmitAudit(ctx context.Context, goal, scope string) (string, error) {
	job := &core.AuditJob{
		Id:    uuid.NewString(),
		Goal:  goal,
		Scope: scope,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", err
	}

	err := s.tasks.Enqueue(ctx, &queue.Envelope{
		Kind: queue.KindAudit,
		ID:   queue.NewTaskID(queue.KindAudit),
		Payload: map[string]any{
			"job_id": job.Id,
			"goal":   goal,
			"scope":  scope,
		},
	})
	if err != nil {
		return "", err
	}
	return job.Id, nil
}

// TaskStatus reports the queue status of a task.
func (s *System) TaskStatus(ctx context.Context, taskID string) (core.TaskStatus, error) {
	return s.tasks.Status(ctx, taskID)
}

// TaskResult fetches the terminal result of a finished ingest task.
// Returns storage.ErrNotFound while the task is still running or after
// the result expired.
func (s *System) TaskResult(ctx context.Context, taskID string) (*core.ProcessingResult, error) {
	payload, err := s.results.GetResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var result core.ProcessingResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, errors.Join(storage.ErrSerializationFailed, err)
	}
	return &result, nil
}

// Job fetches an audit job with its results, if finished.
func (s *System) Job(ctx context.Context, jobID string) (*core.AuditJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// AddFeedback appends human feedback on a piece of audit evidence.
func (s *System) AddFeedback(ctx context.Context, fb *core.Feedback) error {
	return s.jobs.AddFeedback(ctx, fb)
}

// ListFeedback returns all feedback recorded for a job.
func (s *System) ListFeedback(ctx context.Context, jobID string) ([]*core.Feedback, error) {
	return s.jobs.ListFeedbackForJob(ctx, jobID)
}

// CountDocuments reports how many documents are stored.
func (s *System) CountDocuments(ctx context.Context) (int, error) {
	return s.docs.CountDocuments(ctx)
}

// DocumentStore exposes the underlying document store.
func (s *System) DocumentStore() storage.DocumentStore {
	return s.docs
}

// Close stops the workers and releases every component.
func (s *System) Close() error {
	s.StopWorkers()
	s.batch.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.tasks.Close(); err != nil {
		s.logger.Error("error closing task queue", "err", err)
	}
	if err := s.jobDB.Close(); err != nil {
		s.logger.Error("error closing job database", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
