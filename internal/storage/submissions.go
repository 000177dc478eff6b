package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ludo-technologies/astsim/domain"
)

// PutSubmission inserts or replaces a submission and maintains the
// assignment index.
func (s *Store) PutSubmission(ctx context.Context, sub *domain.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		var previous domain.Submission
		err := getJSON(txn, submissionKey(sub.SubmissionID), &previous)
		switch {
		case err == nil:
			if previous.AssignmentID != sub.AssignmentID {
				if err := txn.Delete(assignmentIndexKey(previous.AssignmentID, sub.SubmissionID)); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := setJSON(txn, submissionKey(sub.SubmissionID), sub); err != nil {
			return err
		}
		return txn.Set(assignmentIndexKey(sub.AssignmentID, sub.SubmissionID), nil)
	})
	if err != nil {
		return domain.NewStorageError("failed to store submission", err)
	}
	return nil
}

// GetSubmission returns the submission with the given id.
func (s *Store) GetSubmission(ctx context.Context, submissionID int64) (*domain.Submission, error) {
	var sub domain.Submission
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, submissionKey(submissionID), &sub)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewSubmissionNotFoundError(submissionID)
	}
	if err != nil {
		return nil, domain.NewStorageError("failed to load submission", err)
	}
	return &sub, nil
}

// ListByAssignment returns the submissions of an assignment ordered by id.
func (s *Store) ListByAssignment(ctx context.Context, assignmentID int64) ([]*domain.Submission, error) {
	var subs []*domain.Submission
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, assignmentIndexPrefix(assignmentID)) {
			if err := ctx.Err(); err != nil {
				return err
			}
			var sub domain.Submission
			if err := getJSON(txn, submissionKey(trailingID(key)), &sub); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			subs = append(subs, &sub)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to list submissions", err)
	}
	return subs, nil
}
