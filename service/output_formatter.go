package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ludo-technologies/astsim/domain"
)

// FormatterOptions tune the rendering of results
type FormatterOptions struct {
	ShowSegments bool
	MinScore     float64
	Color        bool
}

// OutputFormatterImpl implements domain.SimilarityOutputFormatter
type OutputFormatterImpl struct {
	opts  FormatterOptions
	utils *FormatUtils
}

// NewOutputFormatter creates a new output formatter service
func NewOutputFormatter(opts FormatterOptions) *OutputFormatterImpl {
	return &OutputFormatterImpl{opts: opts, utils: NewFormatUtils(opts.Color)}
}

// FormatPairReport writes a pair comparison in the requested format
func (f *OutputFormatterImpl) FormatPairReport(report *domain.PairReport, format domain.OutputFormat, writer io.Writer) error {
	switch format {
	case domain.OutputFormatText:
		return f.writeString(writer, f.pairText(report))
	case domain.OutputFormatJSON:
		return WriteJSON(writer, report)
	case domain.OutputFormatYAML:
		return WriteYAML(writer, report)
	case domain.OutputFormatCSV:
		return f.pairCSV(report, writer)
	default:
		return domain.NewUnsupportedFormatError(string(format))
	}
}

// FormatBatchSummary writes a batch summary in the requested format.
// Results below MinScore are left out; segments only appear with ShowSegments.
func (f *OutputFormatterImpl) FormatBatchSummary(summary *domain.BatchSummary, format domain.OutputFormat, writer io.Writer) error {
	view := f.filterSummary(summary)
	switch format {
	case domain.OutputFormatText:
		return f.writeString(writer, f.batchText(view))
	case domain.OutputFormatJSON:
		return WriteJSON(writer, view)
	case domain.OutputFormatYAML:
		return WriteYAML(writer, view)
	case domain.OutputFormatCSV:
		return f.batchCSV(view, writer)
	default:
		return domain.NewUnsupportedFormatError(string(format))
	}
}

func (f *OutputFormatterImpl) writeString(writer io.Writer, s string) error {
	if _, err := io.WriteString(writer, s); err != nil {
		return domain.NewOutputError("failed to write output", err)
	}
	return nil
}

// filterSummary returns a copy restricted to the results worth showing,
// highest score first
func (f *OutputFormatterImpl) filterSummary(summary *domain.BatchSummary) *domain.BatchSummary {
	view := *summary
	view.Results = make([]domain.PairResult, 0, len(summary.Results))
	for _, r := range summary.Results {
		if r.Result.Score < f.opts.MinScore {
			continue
		}
		if !f.opts.ShowSegments {
			r.Segments = nil
		}
		view.Results = append(view.Results, r)
	}
	sort.SliceStable(view.Results, func(i, j int) bool {
		return view.Results[i].Result.Score > view.Results[j].Result.Score
	})
	return &view
}

func (f *OutputFormatterImpl) pairText(report *domain.PairReport) string {
	var builder strings.Builder
	u := f.utils

	builder.WriteString(u.FormatMainHeader("AST Similarity Report"))
	builder.WriteString(u.FormatLabel("Cosine similarity", fmt.Sprintf("%.4f", report.Cosine)))
	builder.WriteString(u.FormatLabel("Passed filter", report.Passed))
	if report.Distance != nil {
		builder.WriteString(u.FormatLabel("Tree edit distance", *report.Distance))
	}
	builder.WriteString(u.FormatLabel("Similarity", fmt.Sprintf("%s (%s)", u.FormatScore(report.Score), u.Level(report.Score))))
	builder.WriteString(u.FormatLabel("Nodes", fmt.Sprintf("%d / %d", report.FromNodes, report.ToNodes)))
	builder.WriteString(u.FormatLabel("Matched subtrees", report.Matches))
	builder.WriteString(u.FormatLabel("From lines", orNone(u.FormatRanges(report.FromRanges, ", "))))
	builder.WriteString(u.FormatLabel("To lines", orNone(u.FormatRanges(report.ToRanges, ", "))))
	builder.WriteString(u.FormatLabel("Covered lines", fmt.Sprintf("%d / %d", report.FromLines, report.ToLines)))
	builder.WriteString(u.FormatLabel("Duration", u.FormatDuration(report.DurationMs)))

	if f.opts.ShowSegments && len(report.Segments) > 0 {
		builder.WriteString("\n")
		builder.WriteString(u.FormatSectionHeader("Segments"))
		builder.WriteString(segmentTable(report.Segments))
	}
	return builder.String()
}

func (f *OutputFormatterImpl) batchText(summary *domain.BatchSummary) string {
	var builder strings.Builder
	u := f.utils

	builder.WriteString(u.FormatMainHeader("AST Similarity Batch Report"))
	if summary.GroupID != "" {
		builder.WriteString(u.FormatLabel("Group", summary.GroupID))
	}
	builder.WriteString(u.FormatLabel("Assignment", summary.AssignmentID))
	builder.WriteString(u.FormatLabel("Submissions", summary.Submissions))
	builder.WriteString(u.FormatLabel("Pairs", summary.Pairs))
	builder.WriteString(u.FormatLabel("Compared", summary.Compared))
	builder.WriteString(u.FormatLabel("Same student skipped", summary.SkippedSameStudent))
	builder.WriteString(u.FormatLabel("Code lines", summary.CodeLines))
	builder.WriteString(u.FormatLabel("Duration", u.FormatDuration(summary.DurationMs)))
	builder.WriteString("\n")

	if len(summary.Results) == 0 {
		builder.WriteString("No similar pairs found.\n")
		return builder.String()
	}

	builder.WriteString(u.FormatSectionHeader("Results"))
	var table strings.Builder
	tw := tablewriter.NewWriter(&table)
	tw.SetHeader([]string{"From", "To", "Students", "Score", "Level", "From Lines", "To Lines"})
	tw.SetBorder(false)
	tw.SetCenterSeparator("")
	tw.SetAutoWrapText(false)
	for _, r := range summary.Results {
		tw.Append([]string{
			strconv.FormatInt(r.Result.FromSubmissionID, 10),
			strconv.FormatInt(r.Result.ToSubmissionID, 10),
			fmt.Sprintf("%d/%d", r.Result.FromStudentID, r.Result.ToStudentID),
			u.FormatScore(r.Result.Score),
			string(u.Level(r.Result.Score)),
			orNone(u.FormatRanges(r.FromRanges, ", ")),
			orNone(u.FormatRanges(r.ToRanges, ", ")),
		})
	}
	tw.Render()
	builder.WriteString(table.String())

	if f.opts.ShowSegments {
		for _, r := range summary.Results {
			if len(r.Segments) == 0 {
				continue
			}
			builder.WriteString(fmt.Sprintf("\n%d -> %d\n", r.Result.FromSubmissionID, r.Result.ToSubmissionID))
			builder.WriteString(segmentTable(r.Segments))
		}
	}
	return builder.String()
}

func segmentTable(segments []domain.LineSegment) string {
	var table strings.Builder
	tw := tablewriter.NewWriter(&table)
	tw.SetHeader([]string{"From Start", "From End", "To Start", "To End"})
	tw.SetBorder(false)
	tw.SetCenterSeparator("")
	for _, s := range segments {
		tw.Append([]string{
			strconv.Itoa(s.FromStart), strconv.Itoa(s.FromEnd),
			strconv.Itoa(s.ToStart), strconv.Itoa(s.ToEnd),
		})
	}
	tw.Render()
	return table.String()
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (f *OutputFormatterImpl) pairCSV(report *domain.PairReport, writer io.Writer) error {
	distance := ""
	if report.Distance != nil {
		distance = strconv.Itoa(*report.Distance)
	}
	rows := [][]string{
		{"cosine", "passed", "distance", "score", "from_nodes", "to_nodes", "matches", "from_ranges", "to_ranges"},
		{
			formatFloat(report.Cosine),
			strconv.FormatBool(report.Passed),
			distance,
			formatFloat(report.Score),
			strconv.Itoa(report.FromNodes),
			strconv.Itoa(report.ToNodes),
			strconv.Itoa(report.Matches),
			f.utils.FormatRanges(report.FromRanges, ";"),
			f.utils.FormatRanges(report.ToRanges, ";"),
		},
	}
	return writeCSV(writer, rows)
}

func (f *OutputFormatterImpl) batchCSV(summary *domain.BatchSummary, writer io.Writer) error {
	rows := [][]string{{
		"result_id", "assignment_id", "from_submission", "to_submission",
		"from_student", "to_student", "score", "cosine", "from_ranges", "to_ranges",
	}}
	for _, r := range summary.Results {
		rows = append(rows, []string{
			strconv.FormatInt(r.Result.ID, 10),
			strconv.FormatInt(r.Result.AssignmentID, 10),
			strconv.FormatInt(r.Result.FromSubmissionID, 10),
			strconv.FormatInt(r.Result.ToSubmissionID, 10),
			strconv.FormatInt(r.Result.FromStudentID, 10),
			strconv.FormatInt(r.Result.ToStudentID, 10),
			formatFloat(r.Result.Score),
			formatFloat(r.Result.Cosine),
			f.utils.FormatRanges(r.FromRanges, ";"),
			f.utils.FormatRanges(r.ToRanges, ";"),
		})
	}
	return writeCSV(writer, rows)
}

func writeCSV(writer io.Writer, rows [][]string) error {
	w := csv.NewWriter(writer)
	if err := w.WriteAll(rows); err != nil {
		return domain.NewOutputError("failed to write CSV", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
