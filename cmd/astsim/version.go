package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/astsim/internal/version"
	"github.com/ludo-technologies/astsim/service"
)

// VersionCommand represents the version command
type VersionCommand struct {
	short  bool
	asJSON bool
}

// NewVersionCommand creates a new version command
func NewVersionCommand() *VersionCommand {
	return &VersionCommand{}
}

// CreateCobraCommand creates the cobra command for version display
func (v *VersionCommand) CreateCobraCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the astsim version, build commit and date, Go version and platform.

Examples:
  astsim version
  astsim version --short
  astsim version --json`,
		RunE: v.runVersion,
	}

	cmd.Flags().BoolVarP(&v.short, "short", "s", false, "Show only version number")
	cmd.Flags().BoolVar(&v.asJSON, "json", false, "Print build information as JSON")

	return cmd
}

// runVersion executes the version command
func (v *VersionCommand) runVersion(cmd *cobra.Command, args []string) error {
	if v.asJSON {
		return service.WriteJSON(cmd.OutOrStdout(), version.Get())
	}
	if v.short {
		fmt.Fprintln(cmd.OutOrStdout(), version.Short())
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	return nil
}

// NewVersionCmd creates and returns the version cobra command
func NewVersionCmd() *cobra.Command {
	return NewVersionCommand().CreateCobraCommand()
}
