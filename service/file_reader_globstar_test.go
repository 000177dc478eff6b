package service

import (
	"testing"
)

func TestFileReader_GlobstarPatterns(t *testing.T) {
	fr := NewFileReader()

	tests := []struct {
		name     string
		include  []string
		exclude  []string
		path     string
		expected bool
	}{
		{
			name:     "globstar include matches nested file",
			include:  []string{"**/*.json"},
			path:     "week1/alice/sub.json",
			expected: true,
		},
		{
			name:     "globstar include matches at root",
			include:  []string{"**/*.json"},
			path:     "sub.json",
			expected: true,
		},
		{
			name:     "directory include does not match outside it",
			include:  []string{"week1/**"},
			path:     "week2/sub.json",
			expected: false,
		},
		{
			name:     "processed directory excluded",
			include:  []string{"**/*.json"},
			exclude:  []string{"**/processed/**"},
			path:     "inbox/processed/msg.json",
			expected: false,
		},
		{
			name:     "base name exclusion",
			include:  []string{"**/*.json"},
			exclude:  []string{"draft-*.json"},
			path:     "week1/draft-3.json",
			expected: false,
		},
		{
			name:     "no include patterns includes everything",
			path:     "any/thing.json",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fr.shouldIncludeFile(tt.path, tt.include, tt.exclude)
			if got != tt.expected {
				t.Errorf("shouldIncludeFile(%q, %v, %v) = %v, want %v", tt.path, tt.include, tt.exclude, got, tt.expected)
			}
		})
	}
}
