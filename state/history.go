// Package state persists completion history across sessions.
//
// History is a record only. A session's completed set always starts
// empty on load and is never restored from here.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotblauer/everystreet/conceptual"
	"github.com/rotblauer/everystreet/params"
	"go.etcd.io/bbolt"
)

var collectionsBucket = []byte("collections")

var ErrUnknownCollection = errors.New("unknown collection")

// Completion is one segment completed in a session.
type Completion struct {
	SegmentID conceptual.SegmentID `json:"segment_id"`
	Name      string               `json:"name,omitempty"`
	Session   conceptual.SessionID `json:"session,omitempty"`
	Time      time.Time            `json:"time"`
}

// Collection describes a loaded map file.
type Collection struct {
	Key        string    `json:"key"`
	FileName   string    `json:"file_name"`
	Segments   int       `json:"segments"`
	FirstSeen  time.Time `json:"first_seen"`
	LastLoaded time.Time `json:"last_loaded"`
}

type History struct {
	DB    *bbolt.DB
	rOnly bool
}

// OpenHistory opens (or creates) the history database in dir.
// A writable handle holds a file lock; other openers wait up to a second.
func OpenHistory(dir string, readOnly bool) (*History, error) {
	if !readOnly {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(filepath.Join(dir, params.HistoryDBName), 0600, &bbolt.Options{
		ReadOnly: readOnly,
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return &History{DB: db, rOnly: readOnly}, nil
}

func (h *History) Close() error {
	return h.DB.Close()
}

func (h *History) storeKV(bucket, key, data []byte) error {
	if key == nil {
		return fmt.Errorf("storeKV: nil key")
	}
	if data == nil {
		return fmt.Errorf("storeKV: nil data")
	}
	return h.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (h *History) readKV(bucket, key []byte) ([]byte, error) {
	var out []byte
	err := h.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

// RegisterCollection notes that a collection was loaded.
func (h *History) RegisterCollection(key, fileName string, segments int, at time.Time) error {
	c := Collection{Key: key, FileName: fileName, Segments: segments, FirstSeen: at, LastLoaded: at}
	prev, err := h.Collection(key)
	if err == nil {
		c.FirstSeen = prev.FirstSeen
	} else if !errors.Is(err, ErrUnknownCollection) {
		return err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return h.storeKV(collectionsBucket, []byte(key), b)
}

func (h *History) Collection(key string) (Collection, error) {
	c := Collection{}
	b, err := h.readKV(collectionsBucket, []byte(key))
	if err != nil {
		return c, err
	}
	if b == nil {
		return c, fmt.Errorf("%w: %s", ErrUnknownCollection, key)
	}
	err = json.Unmarshal(b, &c)
	return c, err
}

// Collections lists known collections, most recently loaded first.
func (h *History) Collections() ([]Collection, error) {
	var out []Collection
	err := h.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(collectionsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			c := Collection{}
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("collection %s: %w", k, err)
			}
			out = append(out, c)
			return nil
		})
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastLoaded.After(out[j].LastLoaded)
	})
	return out, err
}

// RecordCompletion appends c to the collection's history.
func (h *History) RecordCompletion(key string, c Completion) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	err = h.DB.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(params.HistoryBucket)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
	if err != nil {
		return err
	}
	slog.Debug("Recorded completion", "collection", key, "segment", c.SegmentID)
	return nil
}

// Completions returns the collection's history in the order recorded.
func (h *History) Completions(key string) ([]Completion, error) {
	var out []Completion
	err := h.DB.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(params.HistoryBucket)
		if root == nil {
			return nil
		}
		b := root.Bucket([]byte(key))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			c := Completion{}
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	return out, err
}

// CompletedIDs is the set of distinct segment ids ever completed in the collection.
func (h *History) CompletedIDs(key string) (map[conceptual.SegmentID]time.Time, error) {
	cs, err := h.Completions(key)
	if err != nil {
		return nil, err
	}
	out := make(map[conceptual.SegmentID]time.Time, len(cs))
	for _, c := range cs {
		if _, ok := out[c.SegmentID]; !ok {
			out[c.SegmentID] = c.Time
		}
	}
	return out, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
