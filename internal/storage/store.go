package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ludo-technologies/astsim/domain"
)

// Key layout. Numeric components are zero-padded so that prefix iteration
// yields ids in ascending order.
const (
	prefixSubmission      = "sub/"
	prefixAssignmentIndex = "asg/"
	prefixResult          = "res/"
	prefixResultPair      = "pair/"
	prefixResultFrom      = "from/"
	prefixResultAssign    = "resasg/"
	prefixCodeLine        = "line/"

	sequenceResult    = "seq/result"
	sequenceCodeLine  = "seq/line"
	sequenceBandwidth = 64
)

func submissionKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixSubmission, id))
}

func assignmentIndexPrefix(assignmentID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixAssignmentIndex, assignmentID))
}

func assignmentIndexKey(assignmentID, submissionID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", assignmentIndexPrefix(assignmentID), submissionID))
}

func resultKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixResult, id))
}

func resultPairKey(assignmentID, from, to int64) []byte {
	return []byte(prefixResultPair + domain.PairKey(assignmentID, from, to))
}

func resultFromPrefix(assignmentID, from int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d/", prefixResultFrom, assignmentID, from))
}

func resultAssignmentPrefix(assignmentID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixResultAssign, assignmentID))
}

func codeLinePrefix(resultID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d/", prefixCodeLine, resultID))
}

func codeLineKey(resultID, lineID int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", codeLinePrefix(resultID), lineID))
}

func idKey(id int64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}

func encodeID(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

func decodeID(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// Store implements domain.SubmissionRepository and domain.ResultRepository.
type Store struct {
	db        *DB
	resultSeq *badger.Sequence
	lineSeq   *badger.Sequence
}

// NewStore creates a store on an open database. Close releases the id
// sequences but leaves the database open.
func NewStore(db *DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	resultSeq, err := db.GetSequence([]byte(sequenceResult), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("result sequence: %w", err)
	}
	lineSeq, err := db.GetSequence([]byte(sequenceCodeLine), sequenceBandwidth)
	if err != nil {
		_ = resultSeq.Release()
		return nil, fmt.Errorf("code line sequence: %w", err)
	}
	return &Store{db: db, resultSeq: resultSeq, lineSeq: lineSeq}, nil
}

// Close releases the leased ids.
func (s *Store) Close() error {
	return errors.Join(s.resultSeq.Release(), s.lineSeq.Release())
}

// nextID returns positive ids; badger sequences start at zero.
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// keysWithPrefix collects keys only, skipping value reads.
func keysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

// trailingID parses the zero-padded id at the end of an index key.
func trailingID(key []byte) int64 {
	var id int64
	start := len(key)
	for start > 0 && key[start-1] >= '0' && key[start-1] <= '9' {
		start--
	}
	for _, c := range key[start:] {
		id = id*10 + int64(c-'0')
	}
	return id
}

// batchUpdate applies fn to every item, committing and continuing in a new
// transaction whenever the current one grows too big.
func (s *Store) batchUpdate(n int, fn func(txn *badger.Txn, i int) error) error {
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for i := 0; i < n; i++ {
		err := fn(txn, i)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = s.db.NewTransaction(true)
			err = fn(txn, i)
		}
		if err != nil {
			return err
		}
	}
	return txn.Commit()
}
