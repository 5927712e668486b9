package audit

import (
	"time"

	"github.com/jvs-project/dotlock/internal/lock"
	"github.com/jvs-project/dotlock/pkg/logging"
	"github.com/jvs-project/dotlock/pkg/model"
)

// Recorder journals the state-changing events of one resource and passes
// every call on to next. Contention and exhaustion are only forwarded; a
// poll loop would flood the journal with them.
type Recorder struct {
	appender *FileAppender
	resource string
	next     lock.Recorder
	log      *logging.Logger
}

// NewRecorder creates a Recorder. next and log may be nil.
func NewRecorder(a *FileAppender, resource string, next lock.Recorder, log *logging.Logger) *Recorder {
	if log == nil {
		log = logging.Discard()
	}
	return &Recorder{appender: a, resource: resource, next: next, log: log}
}

func (r *Recorder) RecordEvent(ev model.Event) {
	if r.next != nil {
		r.next.RecordEvent(ev)
	}
	switch ev {
	case model.EventContended, model.EventExhausted:
		return
	}
	if err := r.appender.Append(ev, r.resource, nil); err != nil {
		r.log.Warn("audit append failed", map[string]any{"path": r.appender.Path(), "error": err.Error()})
	}
}

func (r *Recorder) ObserveWait(d time.Duration) {
	if r.next != nil {
		r.next.ObserveWait(d)
	}
}

func (r *Recorder) ObserveSkew(d time.Duration) {
	if r.next != nil {
		r.next.ObserveSkew(d)
	}
}
