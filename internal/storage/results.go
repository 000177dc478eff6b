package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ludo-technologies/astsim/domain"
)

// FindResult returns the result stored for an ordered submission pair.
func (s *Store) FindResult(ctx context.Context, assignmentID, fromSubmission, toSubmission int64) (*domain.SimilarityResult, error) {
	var result domain.SimilarityResult
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := lookupPair(txn, assignmentID, fromSubmission, toSubmission)
		if err != nil {
			return err
		}
		return getJSON(txn, resultKey(id), &result)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewDomainError(domain.ErrCodeResultNotFound, "no result for pair "+domain.PairKey(assignmentID, fromSubmission, toSubmission), nil)
	}
	if err != nil {
		return nil, domain.NewStorageError("failed to find result", err)
	}
	return &result, nil
}

// GetResult returns a result by id.
func (s *Store) GetResult(ctx context.Context, resultID int64) (*domain.SimilarityResult, error) {
	var result domain.SimilarityResult
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, resultKey(resultID), &result)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewResultNotFoundError(resultID)
	}
	if err != nil {
		return nil, domain.NewStorageError("failed to load result", err)
	}
	return &result, nil
}

func lookupPair(txn *badger.Txn, assignmentID, from, to int64) (int64, error) {
	item, err := txn.Get(resultPairKey(assignmentID, from, to))
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		id = decodeID(val)
		return nil
	})
	return id, err
}

// SaveResults upserts results by pair key. New results get fresh ids; a
// result for an already stored pair takes over the stored id.
func (s *Store) SaveResults(ctx context.Context, results []*domain.SimilarityResult) error {
	now := time.Now().UTC()
	err := s.batchUpdate(len(results), func(txn *badger.Txn, i int) error {
		r := results[i]
		id, err := lookupPair(txn, r.AssignmentID, r.FromSubmissionID, r.ToSubmissionID)
		switch {
		case err == nil:
			r.ID = id
		case errors.Is(err, badger.ErrKeyNotFound):
			if r.ID, err = nextID(s.resultSeq); err != nil {
				return err
			}
		default:
			return err
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}

		if err := setJSON(txn, resultKey(r.ID), r); err != nil {
			return err
		}
		if err := txn.Set(resultPairKey(r.AssignmentID, r.FromSubmissionID, r.ToSubmissionID), encodeID(r.ID)); err != nil {
			return err
		}
		if err := txn.Set(append(resultFromPrefix(r.AssignmentID, r.FromSubmissionID), idKey(r.ID)...), nil); err != nil {
			return err
		}
		return txn.Set(append(resultAssignmentPrefix(r.AssignmentID), idKey(r.ID)...), nil)
	})
	if err != nil {
		return domain.NewStorageError("failed to save results", err)
	}
	return nil
}

// CountByFrom counts the stored results whose "from" side is fromSubmission.
func (s *Store) CountByFrom(ctx context.Context, assignmentID, fromSubmission int64) (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		n = len(keysWithPrefix(txn, resultFromPrefix(assignmentID, fromSubmission)))
		return nil
	})
	if err != nil {
		return 0, domain.NewStorageError("failed to count results", err)
	}
	return n, nil
}

// ListResults returns the results of an assignment ordered by id.
func (s *Store) ListResults(ctx context.Context, assignmentID int64) ([]*domain.SimilarityResult, error) {
	var results []*domain.SimilarityResult
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keysWithPrefix(txn, resultAssignmentPrefix(assignmentID)) {
			var r domain.SimilarityResult
			if err := getJSON(txn, resultKey(trailingID(key)), &r); err != nil {
				return err
			}
			results = append(results, &r)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to list results", err)
	}
	return results, nil
}

// ReplaceCodeLines deletes every code line of resultIDs, then stores lines
// with fresh ids.
func (s *Store) ReplaceCodeLines(ctx context.Context, resultIDs []int64, lines []domain.CodeLine) error {
	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range resultIDs {
			stale = append(stale, keysWithPrefix(txn, codeLinePrefix(id))...)
		}
		return nil
	})
	if err != nil {
		return domain.NewStorageError("failed to list code lines", err)
	}

	err = s.batchUpdate(len(stale), func(txn *badger.Txn, i int) error {
		return txn.Delete(stale[i])
	})
	if err != nil {
		return domain.NewStorageError("failed to delete code lines", err)
	}

	err = s.batchUpdate(len(lines), func(txn *badger.Txn, i int) error {
		line := &lines[i]
		if line.ID == 0 {
			id, err := nextID(s.lineSeq)
			if err != nil {
				return err
			}
			line.ID = id
		}
		return setJSON(txn, codeLineKey(line.ResultID, line.ID), line)
	})
	if err != nil {
		return domain.NewStorageError("failed to save code lines", err)
	}
	return nil
}

// ListCodeLines returns the code lines of a result ordered by id.
func (s *Store) ListCodeLines(ctx context.Context, resultID int64) ([]domain.CodeLine, error) {
	lines := []domain.CodeLine{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = codeLinePrefix(resultID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var line domain.CodeLine
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &line)
			}); err != nil {
				return err
			}
			lines = append(lines, line)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("failed to list code lines", err)
	}
	return lines, nil
}
