package service

import (
	"time"

	"github.com/google/uuid"
)

// События, отправляемые пользователям по WebSocket.
const (
	EventReportClaimed       = "report.claimed"
	EventReportStatusChanged = "report.status_changed"
	EventReportAssigned      = "report.assigned"
	EventReportUnassigned    = "report.unassigned"
	EventRewardCredited      = "reward.credited"
)

// Notifier доставляет событие пользователю. Реализация не должна блокировать вызывающего.
type Notifier interface {
	NotifyUser(userID uuid.UUID, event string, data any)
}

type NopNotifier struct{}

func (NopNotifier) NotifyUser(uuid.UUID, string, any) {}

// Clock подменяется в тестах.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
