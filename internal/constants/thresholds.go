package constants

import "time"

// Similarity pipeline defaults.
//
// The cosine threshold gates the exact tree edit distance: label histograms of
// two submissions must point in nearly the same direction before the O(n·m)
// comparison runs. Pairs below it are reported with a score of 0.
const (
	// DefaultCosineThreshold is the coarse-filter threshold for batch and per-submission analysis
	DefaultCosineThreshold = 0.8

	// DefaultCompareCosineThreshold is the coarse-filter threshold for on-demand pair comparison
	DefaultCompareCosineThreshold = 0.8

	// DefaultMinSegmentLines is the minimum span, in lines, of a reported segment.
	// Class, method and function declarations are reported regardless.
	DefaultMinSegmentLines = 2
)

// Orchestration defaults
const (
	// DefaultStaleAfter is how long an analysis may go without progress before it is reported as failed
	DefaultStaleAfter = 300 * time.Second

	// DefaultBatchWorkers is the number of "from" submissions compared concurrently
	DefaultBatchWorkers = 10

	// DefaultQueueCapacity bounds pending asynchronous analyses before callers run them inline
	DefaultQueueCapacity = 50

	// DefaultTaskWorkers is the number of asynchronous analyses running at once
	DefaultTaskWorkers = 4
)

// Routing names of the similarity completion message
const (
	// ExchangeName is the exchange similarity messages are published on
	ExchangeName = "codifyExchange"

	// CompletionRoutingKey routes SIMILARITY_COMPLETED messages
	CompletionRoutingKey = "similarity.complete"
)

// ValidThreshold reports whether v is a usable similarity threshold
func ValidThreshold(v float64) bool {
	return v >= 0.0 && v <= 1.0
}
