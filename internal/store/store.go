// Package store provides a thin bbolt wrapper for periodic's local data store.
//
// The store holds validated frames only: a frame is written after it has
// passed validation at its declared resolution and periodicity, and the
// metadata written alongside it records those periods so later reads can
// trust the time column without re-checking it.
//
// Buckets:
//
//	frames      — validated frames keyed by series ID
//	series_meta — resolution, periodicity and shape of each stored frame
//	periods     — named period definitions (e.g. water-year → P1Y+9MT9H)
//	_meta       — internal: schema version, created_at
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/periodic/internal/model"
	"github.com/derickschaefer/periodic/internal/period"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// Bucket name constants.
var (
	bucketFrames     = []byte("frames")
	bucketSeriesMeta = []byte("series_meta")
	bucketPeriods    = []byte("periods")
	bucketInternal   = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{"frames", "series_meta", "periods"}

// ErrNotFound is returned by lookups of absent keys.
var ErrNotFound = errors.New("not found")

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketFrames, bucketSeriesMeta, bucketPeriods, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Series ───────────────────────────────────────────────────────────────────

// PutSeries stores a frame and its metadata in one transaction, replacing
// any previous entry with the same ID. Shape fields of meta (columns, row
// count, first/last, stored_at) are filled from the frame.
func (s *Store) PutSeries(meta model.SeriesMeta, f *model.Frame) error {
	if meta.ID == "" {
		return fmt.Errorf("put series: empty ID")
	}
	meta.TimeName = f.TimeName
	meta.Columns = append([]string(nil), f.Columns...)
	meta.Rows = f.Len()
	meta.First, meta.Last = time.Time{}, time.Time{}
	if f.Len() > 0 {
		meta.First = f.Rows[0].Time
		meta.Last = f.Rows[f.Len()-1].Time
	}
	meta.StoredAt = time.Now().UTC()

	mb, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding series meta: %w", err)
	}
	stored := f.WithRows(f.Rows)
	stored.Name = meta.ID
	fb, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketFrames).Put([]byte(meta.ID), fb); err != nil {
			return err
		}
		return tx.Bucket(bucketSeriesMeta).Put([]byte(meta.ID), mb)
	})
}

// GetSeriesMeta retrieves metadata for a series by ID.
// Returns (meta, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetSeriesMeta(id string) (model.SeriesMeta, bool, error) {
	var meta model.SeriesMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSeriesMeta).Get([]byte(id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &meta)
	})
	if err != nil {
		return meta, false, err
	}
	return meta, meta.ID != "", nil
}

// GetFrame retrieves a stored frame by series ID.
// Returns (nil, false, nil) if not found.
func (s *Store) GetFrame(id string) (*model.Frame, bool, error) {
	var f *model.Frame
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFrames).Get([]byte(id))
		if v == nil {
			return nil
		}
		f = &model.Frame{}
		return json.Unmarshal(v, f)
	})
	if err != nil {
		return nil, false, fmt.Errorf("decoding frame %s: %w", id, err)
	}
	return f, f != nil, nil
}

// ListSeriesMeta returns all stored series metadata, sorted by ID.
func (s *Store) ListSeriesMeta() ([]model.SeriesMeta, error) {
	var metas []model.SeriesMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSeriesMeta).ForEach(func(k, v []byte) error {
			var m model.SeriesMeta
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			metas = append(metas, m)
			return nil
		})
	})
	return metas, err
}

// DeleteSeries removes a frame and its metadata. It returns ErrNotFound if
// neither exists.
func (s *Store) DeleteSeries(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		frames, metas := tx.Bucket(bucketFrames), tx.Bucket(bucketSeriesMeta)
		if frames.Get([]byte(id)) == nil && metas.Get([]byte(id)) == nil {
			return fmt.Errorf("series %s: %w", id, ErrNotFound)
		}
		if err := frames.Delete([]byte(id)); err != nil {
			return err
		}
		return metas.Delete([]byte(id))
	})
}

// ─── Named Periods ────────────────────────────────────────────────────────────

// NamedPeriod is a period saved under a name.
type NamedPeriod struct {
	Name    string        `json:"name"`
	Period  period.Period `json:"period"`
	SavedAt time.Time     `json:"saved_at"`
}

// PutPeriod saves p under name, replacing any previous definition.
func (s *Store) PutPeriod(name string, p period.Period) error {
	if name == "" {
		return fmt.Errorf("put period: empty name")
	}
	b, err := json.Marshal(NamedPeriod{Name: name, Period: p, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding period: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeriods).Put([]byte(name), b)
	})
}

// GetPeriod retrieves a named period. It returns ErrNotFound if absent.
func (s *Store) GetPeriod(name string) (period.Period, error) {
	var np NamedPeriod
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPeriods).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("period %s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(v, &np)
	})
	return np.Period, err
}

// ListPeriods returns all named periods sorted by name.
func (s *Store) ListPeriods() ([]NamedPeriod, error) {
	var out []NamedPeriod
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPeriods).ForEach(func(k, v []byte) error {
			var np NamedPeriod
			if err := json.Unmarshal(v, &np); err != nil {
				return fmt.Errorf("decoding period %s: %w", k, err)
			}
			out = append(out, np)
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// DeletePeriod removes a named period. It returns ErrNotFound if absent.
func (s *Store) DeletePeriod(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPeriods)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("period %s: %w", name, ErrNotFound)
		}
		return b.Delete([]byte(name))
	})
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets, in
// AllBuckets order.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}

// ─── Compaction ───────────────────────────────────────────────────────────────

// Compact rewrites the database into a fresh file and swaps it in place,
// returning the file sizes before and after. The Store stays usable.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.db.Path()
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	before = fi.Size()

	tmp := path + ".compact"
	_ = os.Remove(tmp)
	dst, err := bolt.Open(tmp, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return 0, 0, fmt.Errorf("opening compaction target: %w", err)
	}
	if err := bolt.Compact(dst, s.db, 1<<20); err != nil {
		dst.Close()
		os.Remove(tmp)
		return 0, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		return 0, 0, err
	}
	if err := s.db.Close(); err != nil {
		return 0, 0, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, 0, fmt.Errorf("replacing database: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return 0, 0, fmt.Errorf("reopening db %s: %w", path, err)
	}
	s.db = db

	if fi, err = os.Stat(path); err != nil {
		return before, 0, err
	}
	return before, fi.Size(), nil
}
