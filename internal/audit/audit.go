// Package audit implements the vault's tamper-evident log: an ordered,
// append-only sequence of entries where each entry's prev_hash is the
// SHA-256 of the previous entry's canonical serialization, and each
// entry carries its own HMAC-SHA-256 signature under the vault key.
package audit

import (
	"strconv"
	"strings"

	"github.com/tvault/tvault/internal/vcrypto"
)

// GenesisHash is the prev_hash recorded on an audit log's first entry: 64
// hex zeros, the width of a SHA-256 digest.
var GenesisHash = strings.Repeat("0", 64)

// Entry is one signed, chained audit record.
type Entry struct {
	Timestamp float64 `json:"timestamp"`
	Action    string  `json:"action"`
	Target    string  `json:"target"`
	User      string  `json:"user"`
	Host      string  `json:"host"`
	PrevHash  string  `json:"prev_hash"`
	Signature string  `json:"signature"`
}

// Log is an ordered sequence of audit entries.
type Log struct {
	Entries []Entry
}

// NewLog returns an empty audit log.
func NewLog() *Log {
	return &Log{}
}

// canonical renders the §4.5 serialization string that both the prev_hash
// chain and the signature are computed over. The signature field is never
// itself part of this string. Timestamps use Go's shortest round-trip
// float formatting ('g', -1) — the one documented, pinned rule a
// reimplementation must reproduce bit-for-bit for signatures to verify.
func canonical(e Entry) []byte {
	fields := []string{
		formatTimestamp(e.Timestamp),
		e.Action,
		e.Target,
		e.User,
		e.Host,
		e.PrevHash,
	}
	return []byte(strings.Join(fields, ":"))
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'g', -1, 64)
}

// Append builds and appends a new signed entry chained off the log's
// current tail, deriving prev_hash from the tail's canonical serialization
// (or GenesisHash for an empty log) and signing the candidate with key.
func (l *Log) Append(key []byte, action, target, user, host string, timestamp float64) Entry {
	prevHash := GenesisHash
	if n := len(l.Entries); n > 0 {
		prevHash = vcrypto.ContentHash(canonical(l.Entries[n-1]))
	}

	entry := Entry{
		Timestamp: timestamp,
		Action:    action,
		Target:    target,
		User:      user,
		Host:      host,
		PrevHash:  prevHash,
	}
	entry.Signature = vcrypto.Sign(key, canonical(entry))

	l.Entries = append(l.Entries, entry)
	return entry
}

// Verify recomputes every entry's signature and prev_hash chain link
// under key. It returns true iff the whole chain is intact; it never
// mutates the log and never prevents the vault from opening on failure —
// the caller is expected to log a non-fatal warning instead.
func (l *Log) Verify(key []byte) bool {
	for i, entry := range l.Entries {
		if !vcrypto.Verify(key, canonical(entry), entry.Signature) {
			return false
		}

		wantPrev := GenesisHash
		if i > 0 {
			wantPrev = vcrypto.ContentHash(canonical(l.Entries[i-1]))
		}
		if entry.PrevHash != wantPrev {
			return false
		}
	}
	return true
}
