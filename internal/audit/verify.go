package audit

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/jvs-project/dotlock/pkg/errclass"
	"github.com/jvs-project/dotlock/pkg/model"
)

// Summary describes a verified journal.
type Summary struct {
	Path    string              `json:"path"`
	Records int                 `json:"records"`
	Events  map[model.Event]int `json:"events"`
	Last    model.HashValue     `json:"last_hash,omitempty"`
}

// Verify walks the journal and checks every record hash and the chain
// linking it to its predecessor. A missing journal is empty. A broken
// chain wraps errclass.ErrAuditBroken; the summary up to the break is
// returned with it.
func Verify(path string) (*Summary, error) {
	sum := &Summary{Path: path, Events: map[model.Event]int{}}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return sum, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	line := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line++
		var rec model.AuditRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return sum, errclass.ErrAuditBroken.WithMessagef("line %d: %v", line, err)
		}
		if rec.PrevHash != sum.Last {
			return sum, errclass.ErrAuditBroken.WithMessagef("line %d: chain broken", line)
		}
		want, err := computeRecordHash(&rec)
		if err != nil {
			return sum, err
		}
		if want != rec.RecordHash {
			return sum, errclass.ErrAuditBroken.WithMessagef("line %d: record hash mismatch", line)
		}
		sum.Records++
		sum.Events[rec.Event]++
		sum.Last = rec.RecordHash
	}
	return sum, sc.Err()
}
