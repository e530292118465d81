// Package notify emits stage-transition progress events to external
// observers. Emission is fire-and-forget: a notification failure never fails
// or retries the owning pipeline stage.
package notify

import (
	"encoding/json"
	"time"

	"github.com/ianbrucey/war-room-sub000/internal/model"
)

// Event is the progress payload produced to the event transport. Events are
// scoped to the owning case.
type Event struct {
	CaseID     string                 `json:"case_id"`
	DocumentID string                 `json:"document_id"`
	Stage      model.ProcessingStatus `json:"stage"`
	Percent    int                    `json:"percent"`
	Message    string                 `json:"message"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e Event) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Event) unmarshal(data []byte) error {
	return json.Unmarshal(data, e)
}

// Notifier delivers progress events. Implementations must not block the
// caller beyond a short publish and must swallow their own failures.
type Notifier interface {
	Emit(event Event)
}

// Percent estimates for each pipeline state. Monotonic per document by
// construction of the forward-only state machine.
var percentByStatus = map[model.ProcessingStatus]int{
	model.StatusPending:    10,
	model.StatusExtracting: 30,
	model.StatusAnalyzing:  60,
	model.StatusIndexing:   85,
	model.StatusComplete:   100,
	model.StatusFailed:     0,
}

// PercentFor returns the progress estimate for a status.
func PercentFor(status model.ProcessingStatus) int {
	return percentByStatus[status]
}

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Emit(event Event) {
	for _, n := range m {
		n.Emit(event)
	}
}
