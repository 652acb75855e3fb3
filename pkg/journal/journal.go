// Package journal persists backend health transitions so an operator
// can reconstruct when a replica went down and came back, across router
// restarts. It is an observability aid only; nothing on the routing
// path reads it.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("incidents")

// Incident is one liveness transition of one backend.
type Incident struct {
	Index   int       `json:"index"`
	Address string    `json:"address"`
	Alive   bool      `json:"alive"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Journal is a bbolt-backed incident log. Keys are RFC 3339 timestamps
// so a cursor walk returns incidents in time order.
type Journal struct {
	db *bolt.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one incident.
func (j *Journal) Record(inc Incident) error {
	if inc.At.IsZero() {
		inc.At = time.Now()
	}

	value, err := json.Marshal(inc)
	if err != nil {
		return fmt.Errorf("failed to encode incident: %w", err)
	}

	key := fmt.Sprintf("%s/%d", inc.At.UTC().Format(time.RFC3339Nano), inc.Index)
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), value)
	})
}

// Recent returns up to limit incidents, newest first.
func (j *Journal) Recent(limit int) ([]Incident, error) {
	if limit <= 0 {
		limit = 50
	}

	var out []Incident
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var inc Incident
			if err := json.Unmarshal(v, &inc); err != nil {
				return fmt.Errorf("corrupt incident record %q: %w", k, err)
			}
			out = append(out, inc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
