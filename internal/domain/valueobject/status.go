package valueobject

import "github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"

type ReportStatus string

const (
	ReportStatusReported     ReportStatus = "reported"
	ReportStatusAcknowledged ReportStatus = "acknowledged"
	ReportStatusAssigned     ReportStatus = "assigned"
	ReportStatusInProgress   ReportStatus = "in_progress"
	ReportStatusCompleted    ReportStatus = "completed"
	ReportStatusVerified     ReportStatus = "verified"
	ReportStatusRejected     ReportStatus = "rejected"
)

// AllReportStatuses в порядке жизненного цикла.
var AllReportStatuses = []ReportStatus{
	ReportStatusReported,
	ReportStatusAcknowledged,
	ReportStatusAssigned,
	ReportStatusInProgress,
	ReportStatusCompleted,
	ReportStatusVerified,
	ReportStatusRejected,
}

var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusReported:     {ReportStatusAcknowledged, ReportStatusAssigned, ReportStatusRejected},
	ReportStatusAcknowledged: {ReportStatusAssigned, ReportStatusRejected},
	ReportStatusAssigned:     {ReportStatusInProgress, ReportStatusRejected},
	ReportStatusInProgress:   {ReportStatusCompleted, ReportStatusRejected},
	ReportStatusCompleted:    {ReportStatusVerified, ReportStatusRejected},
	ReportStatusVerified:     {},
	ReportStatusRejected:     {},
}

func (s ReportStatus) IsValid() bool {
	_, ok := reportTransitions[s]
	return ok
}

func (s ReportStatus) CanTransitionTo(newStatus ReportStatus) bool {
	for _, status := range reportTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

// AllowedTransitions возвращает копию списка допустимых переходов.
func (s ReportStatus) AllowedTransitions() []ReportStatus {
	out := make([]ReportStatus, len(reportTransitions[s]))
	copy(out, reportTransitions[s])
	return out
}

// IsUnassigned: в этих статусах у заявки нет исполнителя.
func (s ReportStatus) IsUnassigned() bool {
	return s == ReportStatusReported || s == ReportStatusAcknowledged
}

// RequiresWorker: в этих статусах исполнитель обязателен.
func (s ReportStatus) RequiresWorker() bool {
	switch s {
	case ReportStatusAssigned, ReportStatusInProgress, ReportStatusCompleted, ReportStatusVerified:
		return true
	}
	return false
}

func (s ReportStatus) IsTerminal() bool {
	return len(reportTransitions[s]) == 0
}

// IsReassignable: администратор может сменить исполнителя только до завершения работ.
func (s ReportStatus) IsReassignable() bool {
	switch s {
	case ReportStatusReported, ReportStatusAcknowledged, ReportStatusAssigned, ReportStatusInProgress:
		return true
	}
	return false
}

func NewReportStatus(status string) (ReportStatus, error) {
	s := ReportStatus(status)
	if !s.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "некорректный статус заявки: %q", status)
	}
	return s, nil
}
