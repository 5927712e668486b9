package model

import "time"

// HashValue is a hex-encoded SHA-256 digest.
type HashValue string

// AuditRecord is a single line in the lock event journal (JSONL format).
type AuditRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	Event      Event          `json:"event"`
	Resource   string         `json:"resource"`
	Host       string         `json:"host"`
	PID        int            `json:"pid"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   HashValue      `json:"prev_hash"`
	RecordHash HashValue      `json:"record_hash"`
}
