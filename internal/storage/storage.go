// Package storage provides persistent and in-memory storage for session state.
//
// This package implements the client-side state store:
//  1. A string key/value table (auth token, user data, UI preferences)
//  2. A seen-ticket set used by the watch loop to detect new grievances
//
// Thread-safety:
//   - All operations are protected by mutex
//   - Safe for concurrent access from multiple goroutines
//
// Two implementations are provided:
//   - SQLiteStore: file-backed, survives restarts
//   - MemoryStore: process-local, for tests and throwaway sessions
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Well-known keys.
const (
	KeyAuthToken   = "authToken"
	KeyUserData    = "userData"
	KeySidebarOpen = "sidebarOpen"
)

// Store is a string key/value store.
//
// Get reports ok=false for a missing key. Remove of a missing key is not an error.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// Seen is one ticket the watch loop has already announced.
//
// Fields:
//   - ID: internal numeric id (pklCrmUserId), used for chat lookups
//   - TicketID: human-readable ticket id (e.g., "GRV1234")
//   - UserName: name of the person who raised it, for display
//   - MessageID: Telegram message announcing it, empty if none was sent
type Seen struct {
	ID        int64
	TicketID  string
	UserName  string
	MessageID string
}

// SQLiteStore is a Store backed by a SQLite file.
//
// The seen set is cached in memory and written through to the database so
// IsNew never touches disk.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	seen map[string]Seen // ticketID → record
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS seen_tickets (
	ticket_id  TEXT PRIMARY KEY,
	id         INTEGER NOT NULL,
	user_name  TEXT NOT NULL DEFAULT '',
	message_id TEXT NOT NULL DEFAULT '',
	seen_at    INTEGER NOT NULL
);`

// Open opens (creating if needed) the state database at path and loads the
// seen set into memory.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteStore{db: db, seen: make(map[string]Seen)}
	if err := s.loadSeen(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) loadSeen() error {
	rows, err := s.db.Query(`SELECT ticket_id, id, user_name, message_id FROM seen_tickets`)
	if err != nil {
		return fmt.Errorf("load seen tickets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Seen
		if err := rows.Scan(&r.TicketID, &r.ID, &r.UserName, &r.MessageID); err != nil {
			return fmt.Errorf("scan seen ticket: %w", err)
		}
		s.seen[r.TicketID] = r
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(s.seen) > 0 {
		log.Println("📚 Loaded", len(s.seen), "previously seen tickets from storage")
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// IsNew reports whether ticketID has not been seen before.
func (s *SQLiteStore) IsNew(ticketID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[ticketID]
	return !ok
}

// MarkSeen records a batch of tickets in one transaction.
//
// The in-memory set is only updated after the commit succeeds.
func (s *SQLiteStore) MarkSeen(records []Seen) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO seen_tickets (ticket_id, id, user_name, message_id, seen_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(ticket_id) DO UPDATE SET id = excluded.id, user_name = excluded.user_name,
		 message_id = excluded.message_id`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range records {
		if _, err := stmt.Exec(r.TicketID, r.ID, r.UserName, r.MessageID, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("mark %s seen: %w", r.TicketID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, r := range records {
		s.seen[r.TicketID] = r
	}
	return nil
}

// Lookup returns the seen record for ticketID.
func (s *SQLiteStore) Lookup(ticketID string) (Seen, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.seen[ticketID]
	return r, ok
}

// SeenTickets returns every seen ticket, ordered by ticket id.
func (s *SQLiteStore) SeenTickets() []Seen {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Seen, 0, len(s.seen))
	for _, r := range s.seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out
}

// RemoveSeen forgets ticketID. It reports whether the ticket was present.
func (s *SQLiteStore) RemoveSeen(ticketID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[ticketID]; !ok {
		return false, nil
	}
	if _, err := s.db.Exec(`DELETE FROM seen_tickets WHERE ticket_id = ?`, ticketID); err != nil {
		return false, err
	}
	delete(s.seen, ticketID)
	return true, nil
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
