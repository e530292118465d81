package notify

import "github.com/sirupsen/logrus"

var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes progress events to the structured log. It doubles as
// the case processing log.
type LogNotifier struct {
}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (l *LogNotifier) Emit(event Event) {
	logrus.WithFields(logrus.Fields{
		"case_id":     event.CaseID,
		"document_id": event.DocumentID,
		"stage":       event.Stage,
		"percent":     event.Percent,
	}).Info(event.Message)
}
