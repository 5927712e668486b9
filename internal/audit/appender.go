// Package audit keeps a hash-chained journal of lock events.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jvs-project/dotlock/pkg/model"
)

// FileAppender appends audit records to a JSONL file with hash chain.
// Appends from several processes on one host are serialised with an
// advisory file lock.
type FileAppender struct {
	path string
	host string
	pid  int
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileAppender creates a new FileAppender.
func NewFileAppender(path string) *FileAppender {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return &FileAppender{path: path, host: host, pid: os.Getpid(), now: time.Now}
}

// Path returns the journal file.
func (a *FileAppender) Path() string { return a.path }

// Append adds a new record for ev on resource to the journal.
func (a *FileAppender) Append(ev model.Event, resource string, details map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return fmt.Errorf("get last record hash: %w", err)
	}

	record := &model.AuditRecord{
		Timestamp: a.now().UTC(),
		Event:     ev,
		Resource:  resource,
		Host:      a.host,
		PID:       a.pid,
		Details:   details,
		PrevHash:  prevHash,
	}
	record.RecordHash, err = computeRecordHash(record)
	if err != nil {
		return fmt.Errorf("compute record hash: %w", err)
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := file.Seek(0, 2); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// LastRecordHash returns the hash of the last record in the journal, or ""
// for a missing or empty journal.
func (a *FileAppender) LastRecordHash() (model.HashValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()
	return lastRecordHash(file)
}

func lastRecordHash(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}

	var lastHash model.HashValue
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue // malformed lines are reported by Verify
		}
		lastHash = record.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan audit log: %w", err)
	}
	return lastHash, nil
}

// computeRecordHash hashes the record with RecordHash cleared. Struct
// fields marshal in declaration order and map keys sorted, so the encoding
// is stable.
func computeRecordHash(record *model.AuditRecord) (model.HashValue, error) {
	hashRecord := *record
	hashRecord.RecordHash = ""
	if hashRecord.Details != nil {
		// Round-trip details so values hash the way they read back.
		raw, err := json.Marshal(hashRecord.Details)
		if err != nil {
			return "", err
		}
		hashRecord.Details = nil
		if err := json.Unmarshal(raw, &hashRecord.Details); err != nil {
			return "", err
		}
	}

	data, err := json.Marshal(&hashRecord)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(hash[:])), nil
}
