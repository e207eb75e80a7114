// Package cache persists per-record assembly outcomes so repeated builds with the same
// configuration skip tokenization and labeling.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2b"

	"github.com/lab/mwp-encoder/pkg/equation"
	"github.com/lab/mwp-encoder/pkg/feature"
)

var outcomesBucket = []byte("Outcomes")

// Store is a bbolt database of outcomes keyed by configuration fingerprint and record index.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(outcomesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Fingerprint hashes everything that influences an outcome: input file, tokenizer,
// labeling and verification settings.
func Fingerprint(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// FileDigest hashes the contents of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Scope returns the view of the cache for one fingerprint.
func (s *Store) Scope(fingerprint string) *Scope {
	return &Scope{store: s, prefix: fingerprint + "/"}
}

// Count returns the number of outcomes stored under fingerprint.
func (s *Store) Count(fingerprint string) (int, error) {
	prefix := []byte(fingerprint + "/")
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(outcomesBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Prune deletes every outcome not stored under keep.
func (s *Store) Prune(keep string) (int, error) {
	prefix := keep + "/"
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(outcomesBucket)
		var stale [][]byte
		if err := b.ForEach(func(k, _ []byte) error {
			if !strings.HasPrefix(string(k), prefix) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}

// Scope reads and writes outcomes for a single fingerprint. Safe for concurrent use.
type Scope struct {
	store  *Store
	prefix string
}

func (sc *Scope) key(index int) []byte {
	return []byte(fmt.Sprintf("%s%010d", sc.prefix, index))
}

// Load returns the cached outcome of record index.
func (sc *Scope) Load(index int) (feature.Result, bool, error) {
	var data []byte
	err := sc.store.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(outcomesBucket).Get(sc.key(index)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return feature.Result{}, false, err
	}
	var e entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		return feature.Result{}, false, fmt.Errorf("failed to decode outcome: %w", err)
	}
	return e.result(), true, nil
}

// Store saves the outcome of record index. Concurrent calls are batched into shared
// transactions.
func (sc *Scope) Store(index int, res feature.Result) error {
	data, err := cbor.Marshal(newEntry(res))
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	return sc.store.db.Batch(func(tx *bbolt.Tx) error {
		return tx.Bucket(outcomesBucket).Put(sc.key(index), data)
	})
}

type entry struct {
	Reason    int                `cbor:"1,keyasint"`
	Err       string             `cbor:"2,keyasint,omitempty"`
	Mismatch  bool               `cbor:"3,keyasint,omitempty"`
	Value     float64            `cbor:"4,keyasint"`
	Duplicate bool               `cbor:"5,keyasint,omitempty"`
	Mode      int                `cbor:"6,keyasint"`
	Base      *feature.Base      `cbor:"7,keyasint,omitempty"`
	Groups    [][]equation.Label `cbor:"8,keyasint,omitempty"`
}

func newEntry(res feature.Result) entry {
	e := entry{
		Reason:    int(res.Reason),
		Mismatch:  res.Mismatch,
		Value:     res.Value,
		Duplicate: res.DuplicateSteps,
	}
	if res.Err != nil {
		e.Err = res.Err.Error()
	}
	if res.Feature != nil {
		e.Mode = int(res.Feature.Mode())
		e.Base = res.Feature.Common()
		e.Groups = res.Feature.Heights()
		if e.Mode != int(equation.ModeParallel) {
			e.Groups = [][]equation.Label{res.Feature.Labels()}
		}
	}
	return e
}

func (e entry) result() feature.Result {
	res := feature.Result{
		Reason:         feature.Reason(e.Reason),
		Mismatch:       e.Mismatch,
		Value:          e.Value,
		DuplicateSteps: e.Duplicate,
	}
	if e.Err != "" {
		res.Err = errors.New(e.Err)
	}
	if e.Base != nil {
		res.Feature = feature.New(equation.Mode(e.Mode), *e.Base, e.Groups)
	}
	return res
}
