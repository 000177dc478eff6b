package service

import (
	"path/filepath"
	"strings"

	"github.com/ludo-technologies/astsim/domain"
)

// OutputFormatResolver picks the output format for a command
type OutputFormatResolver struct{}

func NewOutputFormatResolver() *OutputFormatResolver { return &OutputFormatResolver{} }

// Determine returns the format named by the flag, else the one implied by the
// output file extension, else the configured default.
func (r *OutputFormatResolver) Determine(flagFormat, outputPath, configured string) (domain.OutputFormat, error) {
	if flagFormat != "" {
		return domain.ParseOutputFormat(flagFormat)
	}
	if outputPath != "" {
		switch strings.ToLower(filepath.Ext(outputPath)) {
		case ".json":
			return domain.OutputFormatJSON, nil
		case ".yaml", ".yml":
			return domain.OutputFormatYAML, nil
		case ".csv":
			return domain.OutputFormatCSV, nil
		case ".txt":
			return domain.OutputFormatText, nil
		}
	}
	return domain.ParseOutputFormat(configured)
}
