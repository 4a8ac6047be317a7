// Package audit keeps the forensic trail of rejected inputs. Every stored
// record carries a salted one-way hash of the input, never the plaintext.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SafeNest/QueryShield/pkg/types"
)

// DefaultCapacity bounds the in-memory ring buffer. Oldest entries are
// evicted first regardless of call volume.
const DefaultCapacity = 1000

// BlockedAttempt is one rejected-input record.
type BlockedAttempt struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Severity  types.Severity `json:"severity"`
	PatternID string         `json:"pattern_id"`
	InputHash string         `json:"input_hash"`
	Context   string         `json:"context"`
}

// Hasher derives audit-safe input hashes. The salt comes from the injected
// secret provider so hashes cannot be brute-forced offline from the audit
// trail alone.
type Hasher struct {
	salt []byte
}

func NewHasher(salt []byte) Hasher {
	return Hasher{salt: salt}
}

func (h Hasher) Hash(value string) string {
	sum := sha256.New()
	sum.Write(h.salt)
	sum.Write([]byte(value))
	return hex.EncodeToString(sum.Sum(nil))
}

// Log is a bounded FIFO ring buffer of blocked attempts.
type Log struct {
	mu       sync.Mutex
	entries  []BlockedAttempt
	capacity int
	total    uint64
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

func (l *Log) Append(a BlockedAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total++
	l.entries = append(l.entries, a)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// Snapshot copies the current buffer, oldest first.
func (l *Log) Snapshot() []BlockedAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]BlockedAttempt, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Summary aggregates the retained audit window.
type Summary struct {
	TotalBlocked   uint64                 `json:"total_blocked"`
	Retained       int                    `json:"retained"`
	BySeverity     map[types.Severity]int `json:"by_severity"`
	ByPattern      map[string]int         `json:"by_pattern"`
	OldestRetained time.Time              `json:"oldest_retained,omitempty"`
	NewestRetained time.Time              `json:"newest_retained,omitempty"`
}

func (l *Log) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Summary{
		TotalBlocked: l.total,
		Retained:     len(l.entries),
		BySeverity:   make(map[types.Severity]int),
		ByPattern:    make(map[string]int),
	}
	for _, e := range l.entries {
		s.BySeverity[e.Severity]++
		s.ByPattern[e.PatternID]++
	}
	if len(l.entries) > 0 {
		s.OldestRetained = l.entries[0].Timestamp
		s.NewestRetained = l.entries[len(l.entries)-1].Timestamp
	}
	return s
}
