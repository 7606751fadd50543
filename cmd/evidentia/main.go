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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/evidentia"
	"github.com/poiesic/evidentia/ai"
	"github.com/poiesic/evidentia/core"
	"github.com/poiesic/evidentia/pipeline"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "evidentia",
		Usage: "Asynchronous document audit pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Data directory for document store and job database",
				Value:   "./data",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
				Value: "http://localhost:11434/v1",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
				Value: "embeddinggemma",
			},
			&cli.StringFlag{
				Name:  "chat-host",
				Usage: "Chat model host URL (defaults to embedding-host)",
			},
			&cli.StringFlag{
				Name:  "chat-model",
				Usage: "Chat model name used for audit synthesis",
				Value: "qwen2.5:3b",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "worker",
				Usage:  "Run the ingest and audit workers until interrupted",
				Action: workerCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Ingest documents from a JSON file synchronously",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Maximum documents processed in parallel",
						Value: pipeline.DefaultBatchConcurrency,
					},
				},
			},
			{
				Name:      "audit",
				Usage:     "Submit an audit job for a goal",
				ArgsUsage: "GOAL",
				Action:    auditCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "scope",
						Usage: "Optional audit scope label",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Run the audit inline and print the results",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the status and results of an audit job",
				ArgsUsage: "JOB_ID",
				Action:    statusCommand,
			},
			{
				Name:      "feedback",
				Usage:     "Record feedback on a piece of audit evidence",
				ArgsUsage: "JOB_ID DOC_ID KIND",
				Action:    feedbackCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "comment",
						Usage: "Optional free-text comment",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openSystem(c *cli.Context, extra ...evidentia.SystemOption) (*evidentia.System, error) {
	chatHost := c.String("chat-host")
	if chatHost == "" {
		chatHost = c.String("embedding-host")
	}

	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatHost(chatHost),
		ai.WithChatModel(c.String("chat-model")),
	)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	opts := append([]evidentia.SystemOption{evidentia.WithAIConfig(cfg)}, extra...)
	return evidentia.Open(c.String("data"), opts...)
}

func workerCommand(c *cli.Context) error {
	sys, err := openSystem(c, evidentia.WithDurableQueue())
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sys.StartWorkers(ctx)
	fmt.Fprintln(os.Stderr, "workers running, press Ctrl-C to stop")

	<-ctx.Done()
	sys.StopWorkers()
	return nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one input file")
	}

	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("reading input file: %w", err)
	}
	var docs []pipeline.RawDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parsing input file: %w", err)
	}

	sys, err := openSystem(c, evidentia.WithMaxWorkers(c.Int("concurrency")))
	if err != nil {
		return err
	}
	defer sys.Close()

	batch, err := sys.ProcessBatch(context.Background(), docs)
	if err != nil {
		return err
	}

	fmt.Printf("processed %d documents: %d successful, %d failed\n",
		batch.Total, batch.Successful, batch.Failed)
	for _, r := range batch.Results {
		if r.Status == core.OutcomeFailed {
			fmt.Printf("  failed: %s: %s\n", r.Title, r.Error)
		}
		for _, w := range r.ValidationErrors {
			fmt.Printf("  warning: %s: %s\n", r.Title, w)
		}
	}
	return nil
}

func auditCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one audit goal")
	}
	goal := c.Args().First()

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	ctx := context.Background()
	jobID, err := sys.SubmitAudit(ctx, goal, c.String("scope"))
	if err != nil {
		return err
	}
	fmt.Printf("submitted audit job %s\n", jobID)

	if !c.Bool("wait") {
		fmt.Println("run 'evidentia worker' to process it, then 'evidentia status' to see results")
		return nil
	}

	// Inline mode: drive the workers in this process until the job settles.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sys.StartWorkers(runCtx)

	for {
		job, err := sys.Job(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			sys.StopWorkers()
			return printJob(job)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func statusCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one job ID")
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	job, err := sys.Job(context.Background(), c.Args().First())
	if err != nil {
		return err
	}
	return printJob(job)
}

func feedbackCommand(c *cli.Context) error {
	if c.NArg() != 3 {
		return fmt.Errorf("expected JOB_ID DOC_ID KIND")
	}

	sys, err := openSystem(c)
	if err != nil {
		return err
	}
	defer sys.Close()

	fb := &core.Feedback{
		JobID:   c.Args().Get(0),
		DocID:   core.DocID(c.Args().Get(1)),
		Kind:    c.Args().Get(2),
		Comment: c.String("comment"),
	}
	if err := sys.AddFeedback(context.Background(), fb); err != nil {
		return err
	}
	fmt.Printf("recorded feedback %s\n", fb.Id)
	return nil
}

func printJob(job *core.AuditJob) error {
	fmt.Printf("job:      %s\n", job.Id)
	fmt.Printf("goal:     %s\n", job.Goal)
	if job.Scope != "" {
		fmt.Printf("scope:    %s\n", job.Scope)
	}
	fmt.Printf("status:   %s\n", job.Status)
	fmt.Printf("progress: %.0f%%\n", job.Progress)
	if job.Error != "" {
		fmt.Printf("error:    %s\n", job.Error)
	}
	if job.Results == nil {
		return nil
	}

	r := job.Results
	fmt.Printf("\nevidence: %d items (precision %.2f, recall %.2f)\n", r.TotalEvidence, r.Precision, r.Recall)
	for _, item := range r.Evidence {
		fmt.Printf("  %.3f  %s  %s\n", item.Score, item.DocID, item.Title)
	}
	fmt.Printf("\n%s\n", r.Summary)
	if len(r.Recommendations) > 0 {
		fmt.Println("\nrecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
