package service

import (
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/ludo-technologies/astsim/internal/analyzer"
)

// SubmissionCache holds built trees and label vectors keyed by submission id.
// Entries are built lazily; concurrent requests for the same key share a
// single build and every caller observes the same result. Cached trees carry
// their spans and must be treated as read-only.
type SubmissionCache struct {
	trees   sync.Map // int64 -> *analyzer.TreeNode
	vectors sync.Map // int64 -> analyzer.TypeVector
	flight  singleflight.Group

	treeBuilds   atomic.Int64
	vectorBuilds atomic.Int64
}

// NewSubmissionCache creates an empty cache
func NewSubmissionCache() *SubmissionCache {
	return &SubmissionCache{}
}

// Tree returns the built tree of a submission, building it from doc on the
// first request. Build errors are returned to every waiting caller and are
// not cached.
func (c *SubmissionCache) Tree(submissionID int64, doc json.RawMessage) (*analyzer.TreeNode, error) {
	if v, ok := c.trees.Load(submissionID); ok {
		return v.(*analyzer.TreeNode), nil
	}

	v, err, _ := c.flight.Do("tree:"+strconv.FormatInt(submissionID, 10), func() (interface{}, error) {
		if v, ok := c.trees.Load(submissionID); ok {
			return v, nil
		}
		tree, err := analyzer.BuildTree(doc)
		if err != nil {
			return nil, err
		}
		c.treeBuilds.Add(1)
		cacheBuilds.WithLabelValues("tree").Inc()
		actual, _ := c.trees.LoadOrStore(submissionID, tree)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*analyzer.TreeNode), nil
}

// Vector returns the label histogram of a submission, computed from doc on
// the first request without building a tree.
func (c *SubmissionCache) Vector(submissionID int64, doc json.RawMessage) (analyzer.TypeVector, error) {
	if v, ok := c.vectors.Load(submissionID); ok {
		return v.(analyzer.TypeVector), nil
	}

	v, err, _ := c.flight.Do("vector:"+strconv.FormatInt(submissionID, 10), func() (interface{}, error) {
		if v, ok := c.vectors.Load(submissionID); ok {
			return v, nil
		}
		raw, err := analyzer.DecodeDocument(doc)
		if err != nil {
			return nil, err
		}
		c.vectorBuilds.Add(1)
		cacheBuilds.WithLabelValues("vector").Inc()
		actual, _ := c.vectors.LoadOrStore(submissionID, analyzer.VectorizeRaw(raw))
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(analyzer.TypeVector), nil
}

// Forget drops both entries of a submission, e.g. after its document changed
func (c *SubmissionCache) Forget(submissionID int64) {
	c.trees.Delete(submissionID)
	c.vectors.Delete(submissionID)
}

// Builds returns how many trees and vectors were built so far
func (c *SubmissionCache) Builds() (trees, vectors int64) {
	return c.treeBuilds.Load(), c.vectorBuilds.Load()
}
