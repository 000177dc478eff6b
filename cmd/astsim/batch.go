package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ludo-technologies/astsim/app"
	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/config"
	"github.com/ludo-technologies/astsim/service"
)

// BatchCommand handles the directory batch CLI command
type BatchCommand struct {
	// Input options
	recursive       bool
	includePatterns []string
	excludePatterns []string
	assignmentID    int64
	groupID         string

	// Analysis configuration
	workers         int
	cosineThreshold float64
	minLines        int
	inMemory        bool

	// Output options
	format       string
	outputPath   string
	showSegments bool
	minScore     float64
	noColor      bool
	noProgress   bool
}

// NewBatchCommand creates a new batch command
func NewBatchCommand() *BatchCommand {
	return &BatchCommand{recursive: true}
}

// CreateCobraCommand creates the Cobra command for batch analysis
func (c *BatchCommand) CreateCobraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [paths...]",
		Short: "Compare every pair of submissions in a directory",
		Long: `Load submission files {submissionId, studentId, assignmentId, ast}
into the store and compare every pair of the assignment in both directions.

Pairs of the same student are skipped. Results are persisted to the
configured store so that later runs reuse them.

Examples:
  # Analyze all submissions under ./submissions
  astsim batch ./submissions

  # Only pairs scoring at least 0.6, as JSON
  astsim batch --min-score 0.6 -f json ./submissions

  # Pick one assignment when the directory holds several
  astsim batch --assignment 42 ./submissions`,
		RunE: c.runBatch,
	}

	cmd.Flags().BoolVarP(&c.recursive, "recursive", "r", true,
		"Recursively search directories")
	cmd.Flags().StringSliceVar(&c.includePatterns, "include", nil,
		"Glob patterns of submission files (default: **/*.json)")
	cmd.Flags().StringSliceVar(&c.excludePatterns, "exclude", nil,
		"Glob patterns to skip")
	cmd.Flags().Int64Var(&c.assignmentID, "assignment", 0,
		"Assignment to analyze when the files span several")
	cmd.Flags().StringVar(&c.groupID, "group", "",
		"Label of this run in progress events (default: random)")
	cmd.Flags().IntVar(&c.workers, "workers", 0,
		"Number of submissions compared concurrently")
	cmd.Flags().Float64Var(&c.cosineThreshold, "cosine-threshold", 0,
		"Label-histogram similarity required before exact comparison (0.0-1.0)")
	cmd.Flags().IntVar(&c.minLines, "min-lines", 0,
		"Shortest segment in lines worth reporting")
	cmd.Flags().BoolVar(&c.inMemory, "in-memory", false,
		"Keep the store in memory and discard it on exit")
	cmd.Flags().StringVarP(&c.format, "format", "f", "",
		"Output format: text, json, yaml, csv")
	cmd.Flags().StringVarP(&c.outputPath, "output", "o", "",
		"Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&c.showSegments, "show-segments", false,
		"List every matched segment")
	cmd.Flags().Float64Var(&c.minScore, "min-score", 0,
		"Hide pairs scoring below this value")
	cmd.Flags().BoolVar(&c.noColor, "no-color", false,
		"Disable colored output")
	cmd.Flags().BoolVar(&c.noProgress, "no-progress", false,
		"Disable the progress bar")

	return cmd
}

// runBatch executes the batch command
func (c *BatchCommand) runBatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	cfg, err := loadConfig(cmd, getTargetPathFromArgs(args))
	if err != nil {
		return err
	}
	c.applyCliOverrides(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	format, err := service.NewOutputFormatResolver().Determine(c.format, c.outputPath, cfg.Output.Format)
	if err != nil {
		return err
	}

	logger := slog.Default()
	store, closeStore, err := openStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publishers := service.MultiPublisher{service.NewLogPublisher(logger)}
	if !c.noProgress && service.IsInteractiveEnvironment() {
		progress := service.NewProgressManager()
		defer progress.Close()
		publishers = append(publishers, service.NewProgressPublisher(progress))
	}

	svc, err := service.NewSimilarityService(store, store, publishers, nil, service.SimilarityOptionsFromConfig(cfg), logger)
	if err != nil {
		return err
	}

	formatter := service.NewOutputFormatter(service.FormatterOptions{
		ShowSegments: cfg.Output.ShowSegments,
		MinScore:     cfg.Output.MinScore,
		Color:        !c.noColor && c.outputPath == "" && format == domain.OutputFormatText && term.IsTerminal(int(os.Stdout.Fd())),
	})
	useCase := app.NewBatchUseCase(svc, store, service.NewFileReader(), formatter,
		service.NewFileOutputWriter(cmd.ErrOrStderr()), logger)

	_, err = useCase.Execute(cmd.Context(), app.BatchRequest{
		Paths:           args,
		Recursive:       cfg.Input.Recursive,
		IncludePatterns: cfg.Input.IncludePatterns,
		ExcludePatterns: cfg.Input.ExcludePatterns,
		AssignmentID:    c.assignmentID,
		GroupID:         c.groupID,
		OutputFormat:    format,
		OutputWriter:    cmd.OutOrStdout(),
		OutputPath:      c.outputPath,
	})
	if err != nil {
		return explainError(cmd, fmt.Errorf("batch analysis failed: %w", err))
	}
	return nil
}

// applyCliOverrides applies flags that were set explicitly on top of cfg
func (c *BatchCommand) applyCliOverrides(cfg *config.Config, cmd *cobra.Command) {
	ft := config.NewFlagTrackerFromFlagSet(cmd.Flags())
	cfg.Input.Recursive = config.Override(ft, cfg.Input.Recursive, c.recursive, "recursive")
	cfg.Input.IncludePatterns = config.Override(ft, cfg.Input.IncludePatterns, c.includePatterns, "include")
	cfg.Input.ExcludePatterns = config.Override(ft, cfg.Input.ExcludePatterns, c.excludePatterns, "exclude")
	cfg.Batch.Workers = config.Override(ft, cfg.Batch.Workers, c.workers, "workers")
	cfg.Analysis.CosineThreshold = config.Override(ft, cfg.Analysis.CosineThreshold, c.cosineThreshold, "cosine-threshold")
	cfg.Analysis.MinSegmentLines = config.Override(ft, cfg.Analysis.MinSegmentLines, c.minLines, "min-lines")
	cfg.Storage.InMemory = config.Override(ft, cfg.Storage.InMemory, c.inMemory, "in-memory")
	cfg.Output.ShowSegments = config.Override(ft, cfg.Output.ShowSegments, c.showSegments, "show-segments")
	cfg.Output.MinScore = config.Override(ft, cfg.Output.MinScore, c.minScore, "min-score")
}

// NewBatchCmd creates and returns the batch cobra command
func NewBatchCmd() *cobra.Command {
	return NewBatchCommand().CreateCobraCommand()
}
