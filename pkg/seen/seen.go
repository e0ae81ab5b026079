// Package seen remembers which image files were already processed, keyed by
// content digest, so renamed or re-dropped files are not posted twice.
package seen

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "digests"

// ErrNotFound is returned by Get for unknown digests.
var ErrNotFound = errors.New("digest not seen")

// Entry is what gets recorded for a processed file.
type Entry struct {
	Path              string    `json:"path"`
	TransactionNumber string    `json:"transaction_number,omitempty"`
	Failed            bool      `json:"failed,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	At                time.Time `json:"at"`
}

// Index is a bbolt-backed digest set.
type Index struct {
	db *bbolt.DB
}

// Open creates or opens the index file at path.
func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening seen index: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return &Index{db: db}, nil
}

// Digest is the key used for raw file contents.
func Digest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Get returns the entry recorded for digest.
func (i *Index) Get(digest string) (Entry, error) {
	var e Entry
	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(digest))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &e)
	})
	return e, err
}

// Seen reports whether digest should be skipped. Failed entries are only
// skipped when retryFailed is false.
func (i *Index) Seen(digest string, retryFailed bool) (bool, error) {
	e, err := i.Get(digest)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !(e.Failed && retryFailed), nil
}

// Mark records digest, replacing any previous entry.
func (i *Index) Mark(digest string, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}
	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(digest), data)
	})
}

// Forget removes digest so the file is processed again.
func (i *Index) Forget(digest string) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(digest))
	})
}

// Len returns the number of recorded digests.
func (i *Index) Len() (int, error) {
	var n int
	err := i.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	return n, err
}

func (i *Index) Close() error {
	return i.db.Close()
}
