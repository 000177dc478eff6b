package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ludo-technologies/astsim/app"
	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/config"
	"github.com/ludo-technologies/astsim/internal/storage"
	"github.com/ludo-technologies/astsim/service"
)

// CompareCommand handles the two-file comparison CLI command
type CompareCommand struct {
	// Analysis configuration
	cosineThreshold float64
	minLines        int

	// Output options
	format       string
	outputPath   string
	showSegments bool
	noColor      bool
}

// NewCompareCommand creates a new compare command
func NewCompareCommand() *CompareCommand {
	return &CompareCommand{}
}

// CreateCobraCommand creates the Cobra command for pair comparison
func (c *CompareCommand) CreateCobraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <from.json> <to.json>",
		Short: "Compare two AST documents",
		Long: `Compare two labeled AST documents and report their structural similarity.

Each file holds either a bare AST document or a submission file
{submissionId, studentId, assignmentId, ast}. The report contains the
cosine similarity of the label histograms, the tree edit distance when the
pair passed the filter, the normalized similarity and the matching line
ranges of both sides.

Examples:
  # Compare two documents
  astsim compare a.json b.json

  # Report every matched segment, also one-line ones
  astsim compare --min-lines 1 --show-segments a.json b.json

  # Write a JSON report
  astsim compare -o report.json a.json b.json`,
		Args: cobra.ExactArgs(2),
		RunE: c.runCompare,
	}

	cmd.Flags().Float64Var(&c.cosineThreshold, "cosine-threshold", 0,
		"Label-histogram similarity required before exact comparison (0.0-1.0)")
	cmd.Flags().IntVar(&c.minLines, "min-lines", 0,
		"Shortest segment in lines worth reporting")
	cmd.Flags().StringVarP(&c.format, "format", "f", "",
		"Output format: text, json, yaml, csv")
	cmd.Flags().StringVarP(&c.outputPath, "output", "o", "",
		"Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&c.showSegments, "show-segments", false,
		"List every matched segment")
	cmd.Flags().BoolVar(&c.noColor, "no-color", false,
		"Disable colored output")

	return cmd
}

// runCompare executes the compare command
func (c *CompareCommand) runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, getTargetPathFromArgs(args))
	if err != nil {
		return err
	}
	c.applyCliOverrides(cfg, cmd)

	format, err := service.NewOutputFormatResolver().Determine(c.format, c.outputPath, cfg.Output.Format)
	if err != nil {
		return err
	}

	db, err := storage.OpenInMemory()
	if err != nil {
		return err
	}
	defer db.Close()
	store, err := storage.NewStore(db)
	if err != nil {
		return err
	}
	defer store.Close()

	svc, err := service.NewSimilarityService(store, store, nil, nil, service.SimilarityOptionsFromConfig(cfg), nil)
	if err != nil {
		return err
	}

	formatter := service.NewOutputFormatter(service.FormatterOptions{
		ShowSegments: cfg.Output.ShowSegments,
		Color:        !c.noColor && c.outputPath == "" && format == domain.OutputFormatText && term.IsTerminal(int(os.Stdout.Fd())),
	})
	useCase := app.NewCompareUseCase(svc, formatter, service.NewFileOutputWriter(cmd.ErrOrStderr()))

	threshold := cfg.Analysis.CompareCosineThreshold
	minLines := cfg.Analysis.MinSegmentLines
	_, err = useCase.Execute(context.Background(), app.CompareRequest{
		FromPath:        args[0],
		ToPath:          args[1],
		CosineThreshold: &threshold,
		MinSegmentLines: &minLines,
		OutputFormat:    format,
		OutputWriter:    cmd.OutOrStdout(),
		OutputPath:      c.outputPath,
	})
	if err != nil {
		return explainError(cmd, fmt.Errorf("comparison failed: %w", err))
	}
	return nil
}

// applyCliOverrides applies flags that were set explicitly on top of cfg
func (c *CompareCommand) applyCliOverrides(cfg *config.Config, cmd *cobra.Command) {
	ft := config.NewFlagTrackerFromFlagSet(cmd.Flags())
	cfg.Analysis.CompareCosineThreshold = config.Override(ft, cfg.Analysis.CompareCosineThreshold, c.cosineThreshold, "cosine-threshold")
	cfg.Analysis.MinSegmentLines = config.Override(ft, cfg.Analysis.MinSegmentLines, c.minLines, "min-lines")
	cfg.Output.ShowSegments = config.Override(ft, cfg.Output.ShowSegments, c.showSegments, "show-segments")
}

// NewCompareCmd creates and returns the compare cobra command
func NewCompareCmd() *cobra.Command {
	return NewCompareCommand().CreateCobraCommand()
}
