package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ianbrucey/war-room-sub000/internal/model"
)

func TestPercentFor(t *testing.T) {
	assert.Equal(t, 10, PercentFor(model.StatusPending))
	assert.Equal(t, 30, PercentFor(model.StatusExtracting))
	assert.Equal(t, 60, PercentFor(model.StatusAnalyzing))
	assert.Equal(t, 85, PercentFor(model.StatusIndexing))
	assert.Equal(t, 100, PercentFor(model.StatusComplete))
	assert.Equal(t, 0, PercentFor(model.StatusFailed))
}

type captureNotifier struct {
	events []Event
}

func (c *captureNotifier) Emit(event Event) {
	c.events = append(c.events, event)
}

func TestMultiFansOut(t *testing.T) {
	a := &captureNotifier{}
	b := &captureNotifier{}

	event := Event{
		CaseID:     "case-1",
		DocumentID: "doc-1",
		Stage:      model.StatusExtracting,
		Percent:    30,
		Timestamp:  time.Now(),
	}
	Multi{a, b}.Emit(event)

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
	assert.Equal(t, event, a.events[0])
}

func TestEventBinaryRoundTrip(t *testing.T) {
	event := Event{
		CaseID:     "case-1",
		DocumentID: "doc-1",
		Stage:      model.StatusComplete,
		Percent:    100,
		Message:    "processing complete",
	}

	data, err := event.MarshalBinary()
	assert.NoError(t, err)

	var got Event
	assert.NoError(t, got.unmarshal(data))
	assert.Equal(t, event.Stage, got.Stage)
	assert.Equal(t, event.Percent, got.Percent)
}
