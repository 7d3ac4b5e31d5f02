// Package audit keeps an append-only local log of authentication
// lifecycle events (credential loads, transport exports, session
// creation and clearing) in a BBolt database.
//
// The log is an observer, not a gatekeeper: callers treat append
// failures as soft and a nil *Log as disabled, so a broken audit file
// can never block authentication.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

// Action identifies an authentication lifecycle event.
type Action string

const (
	ActionCredentialLoaded     Action = "credential_loaded"
	ActionCredentialLoadFailed Action = "credential_load_failed"
	ActionCredentialReleased   Action = "credential_released"
	ActionTransportExported    Action = "transport_exported"
	ActionTransportReleased    Action = "transport_released"
	ActionSessionCreated       Action = "session_created"
	ActionSessionTouched       Action = "session_touched"
	ActionSessionCleared       Action = "session_cleared"
	ActionSessionExpired       Action = "session_expired"
)

// Entry is one recorded event.
type Entry struct {
	ID        string `json:"id"`
	Action    Action `json:"action"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Log is a BBolt-backed append-only event log.
type Log struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens (or creates) the audit database at path.
func Open(path string) (*Log, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit bucket: %w", err)
	}
	return &Log{db: db, now: time.Now}, nil
}

// Close closes the underlying database. Safe on a nil Log.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Append records an event. Safe on a nil Log (disabled logging).
func (l *Log) Append(action Action, detail string) error {
	if l == nil {
		return nil
	}
	entry := Entry{
		ID:        uuid.NewString(),
		Action:    action,
		Detail:    detail,
		CreatedAt: l.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(eventsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return b.Put(key[:], data)
	})
}

// Recent returns up to n events, newest first. Safe on a nil Log.
func (l *Log) Recent(n int) ([]Entry, error) {
	if l == nil || n <= 0 {
		return nil, nil
	}
	var entries []Entry
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(eventsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue // skip unreadable entries rather than failing the listing
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
