package inmemdb

import (
	"sync"

	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

type (
	// DB keeps every table behind one lock so that a write spanning several tables is atomic.
	DB struct {
		sync.RWMutex
		bulletins     map[string]*bulletin.Bulletin
		approvals     map[string][]bulletin.Approval // {bulletinID: rows}
		verifications []bulletin.Verification
		guardians     map[string][]bulletin.Guardian // {studentID: guardians}
	}
)

func Open() *DB {
	return &DB{
		bulletins: make(map[string]*bulletin.Bulletin),
		approvals: make(map[string][]bulletin.Approval),
		guardians: make(map[string][]bulletin.Guardian),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.bulletins = make(map[string]*bulletin.Bulletin)
	db.approvals = make(map[string][]bulletin.Approval)
	db.verifications = nil
	db.guardians = make(map[string][]bulletin.Guardian)
}

// Verifications returns a copy of the recorded verification attempts.
func (db *DB) Verifications() []bulletin.Verification {
	db.RLock()
	defer db.RUnlock()
	return append([]bulletin.Verification(nil), db.verifications...)
}

// Close is a no-op; the data lives as long as the process.
func (db *DB) Close() error { return nil }
