package auditlog

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

type Recorder interface {
	Record(entry Entry)
}

// Sequencer stamps entries with the session, a sequence number and an identifier before passing
// them on
type Sequencer struct {
	SessionIdentifier string
	Recorder          Recorder

	mutex    sync.Mutex
	sequence int64
}

func NewSequencer(recorder Recorder) *Sequencer {
	return &Sequencer{
		SessionIdentifier: uuid.NewString(),
		Recorder:          recorder,
	}
}

func (s *Sequencer) Record(entry Entry) {
	s.mutex.Lock()
	s.sequence++
	entry.Sequence = s.sequence
	s.mutex.Unlock()

	entry.SessionIdentifier = s.SessionIdentifier
	if entry.Identifier == "" {
		entry.Identifier = uuid.NewString()
	}
	if entry.CreationDateTime.IsZero() {
		entry.CreationDateTime = time.Now()
	}

	s.Recorder.Record(entry)
}

type MemoryRecorder struct {
	mutex   sync.Mutex
	entries []Entry
}

func (m *MemoryRecorder) Record(entry Entry) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries = append(m.entries, entry)
}

func (m *MemoryRecorder) Entries() []Entry {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return slices.Clone(m.entries)
}

// MultiRecorder sends every entry to each of its recorders
type MultiRecorder []Recorder

func (m MultiRecorder) Record(entry Entry) {
	for _, recorder := range m {
		recorder.Record(entry)
	}
}
