package service

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

// Actor пользователь, выполняющий запрос.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool  { return a.Role == models.RoleAdmin }
func (a Actor) IsWorker() bool { return a.Role == models.RoleWorker }

type Action string

const (
	ActionSubmit      Action = "submit"
	ActionListAll     Action = "list_all"
	ActionDiscover    Action = "discover"
	ActionClaim       Action = "claim"
	ActionAcknowledge Action = "acknowledge"
	ActionStartWork   Action = "start_work"
	ActionComplete    Action = "complete"
	ActionVerify      Action = "verify"
	ActionReject      Action = "reject"
	ActionAssign      Action = "assign"
	ActionEdit        Action = "edit"
	ActionManageSites Action = "manage_facilities"
)

// transitionActions действие, которым выполняется переход в целевой статус.
var transitionActions = map[valueobject.ReportStatus]Action{
	valueobject.ReportStatusAcknowledged: ActionAcknowledge,
	valueobject.ReportStatusAssigned:     ActionClaim,
	valueobject.ReportStatusInProgress:   ActionStartWork,
	valueobject.ReportStatusCompleted:    ActionComplete,
	valueobject.ReportStatusVerified:     ActionVerify,
	valueobject.ReportStatusRejected:     ActionReject,
}

// ActionForTarget возвращает действие для перехода в статус target.
func ActionForTarget(target valueobject.ReportStatus) (Action, bool) {
	a, ok := transitionActions[target]
	return a, ok
}

// CanPerform единственная проверка прав перед переходами, взятием, назначением и правкой.
// report может быть nil для действий, не привязанных к заявке.
func CanPerform(actor Actor, action Action, report *models.WasteReport) bool {
	if actor.ID == uuid.Nil {
		return false
	}

	switch action {
	case ActionSubmit:
		return actor.Role == models.RoleCitizen || actor.IsAdmin()
	case ActionListAll, ActionDiscover:
		return actor.IsWorker() || actor.IsAdmin()
	case ActionClaim:
		return actor.IsWorker()
	case ActionAcknowledge, ActionVerify, ActionAssign, ActionEdit, ActionManageSites:
		return actor.IsAdmin()
	case ActionStartWork, ActionComplete:
		return actor.IsAdmin() || ownsReport(actor, report)
	case ActionReject:
		if actor.IsAdmin() {
			return true
		}
		// исполнитель может отказаться только от работы, которая ещё не сдана
		return ownsReport(actor, report) &&
			(report.Status == valueobject.ReportStatusAssigned || report.Status == valueobject.ReportStatusInProgress)
	}
	return false
}

func ownsReport(actor Actor, report *models.WasteReport) bool {
	return actor.IsWorker() && report != nil && report.IsAssignedTo(actor.ID)
}
