package mcp

import (
	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/config"
)

func NewTestDependencies(fr domain.SubmissionFileReader, cfg *config.Config, path string) *Dependencies {
	deps := NewDependencies(cfg, path)
	if fr != nil {
		deps.fileReader = fr
	}
	return deps
}
