// Package notify delivers mission notifications to participants: to the
// log, and to websocket clients through Hub.
package notify

import (
	"log/slog"

	"github.com/tilequest/missionengine/pkg/core"
)

// Presenter shows a notification to one participant.
type Presenter interface {
	Present(participant core.ParticipantID, n core.Notification)
}

// Multi fans a notification out to several presenters in order.
type Multi []Presenter

// Present calls every presenter.
func (m Multi) Present(p core.ParticipantID, n core.Notification) {
	for _, pr := range m {
		pr.Present(p, n)
	}
}

// LogPresenter writes notifications to a logger.
type LogPresenter struct {
	logger *slog.Logger
}

// NewLogPresenter creates a LogPresenter. A nil logger uses slog.Default.
func NewLogPresenter(logger *slog.Logger) *LogPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPresenter{logger: logger}
}

// Present logs n at info level.
func (l *LogPresenter) Present(p core.ParticipantID, n core.Notification) {
	attrs := []any{
		"participant", p,
		"mission", n.MissionID,
		"name", n.MissionName,
		"kind", n.Kind,
	}
	if n.Objective != "" {
		attrs = append(attrs, "objective", n.Objective)
	}
	if n.Provider != "" {
		attrs = append(attrs, "provider", n.Provider)
	}
	l.logger.Info("mission notification", attrs...)
}
