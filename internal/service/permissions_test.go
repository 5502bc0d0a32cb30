package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/wastewatch-backend/internal/domain/valueobject"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
)

func TestCanPerform(t *testing.T) {
	citizen := Actor{ID: uuid.New(), Role: models.RoleCitizen}
	worker := Actor{ID: uuid.New(), Role: models.RoleWorker}
	other := Actor{ID: uuid.New(), Role: models.RoleWorker}
	admin := Actor{ID: uuid.New(), Role: models.RoleAdmin}

	report := func(status valueobject.ReportStatus) *models.WasteReport {
		id := worker.ID
		return &models.WasteReport{Status: status, AssignedWorkerID: &id}
	}

	tests := []struct {
		name   string
		actor  Actor
		action Action
		report *models.WasteReport
		want   bool
	}{
		{"житель создаёт", citizen, ActionSubmit, nil, true},
		{"администратор создаёт", admin, ActionSubmit, nil, true},
		{"исполнитель не создаёт", worker, ActionSubmit, nil, false},
		{"исполнитель ищет", worker, ActionDiscover, nil, true},
		{"житель не ищет", citizen, ActionDiscover, nil, false},
		{"исполнитель берёт", worker, ActionClaim, nil, true},
		{"администратор не берёт", admin, ActionClaim, nil, false},
		{"администратор подтверждает", admin, ActionAcknowledge, nil, true},
		{"исполнитель не подтверждает", worker, ActionAcknowledge, nil, false},
		{"свой исполнитель начинает", worker, ActionStartWork, report(valueobject.ReportStatusAssigned), true},
		{"чужой исполнитель не начинает", other, ActionStartWork, report(valueobject.ReportStatusAssigned), false},
		{"свой исполнитель завершает", worker, ActionComplete, report(valueobject.ReportStatusInProgress), true},
		{"администратор завершает", admin, ActionComplete, report(valueobject.ReportStatusInProgress), true},
		{"житель не завершает", citizen, ActionComplete, report(valueobject.ReportStatusInProgress), false},
		{"исполнитель не проверяет", worker, ActionVerify, report(valueobject.ReportStatusCompleted), false},
		{"администратор проверяет", admin, ActionVerify, report(valueobject.ReportStatusCompleted), true},
		{"исполнитель отказывается в работе", worker, ActionReject, report(valueobject.ReportStatusInProgress), true},
		{"исполнитель не отклоняет сданное", worker, ActionReject, report(valueobject.ReportStatusCompleted), false},
		{"администратор отклоняет", admin, ActionReject, report(valueobject.ReportStatusCompleted), true},
		{"житель не отклоняет", citizen, ActionReject, report(valueobject.ReportStatusAssigned), false},
		{"администратор назначает", admin, ActionAssign, nil, true},
		{"исполнитель не назначает", worker, ActionAssign, nil, false},
		{"администратор правит", admin, ActionEdit, nil, true},
		{"администратор добавляет пункт", admin, ActionManageSites, nil, true},
		{"житель не добавляет пункт", citizen, ActionManageSites, nil, false},
		{"анонимный ничего не может", Actor{Role: models.RoleAdmin}, ActionEdit, nil, false},
		{"неизвестное действие", admin, Action("delete"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPerform(tt.actor, tt.action, tt.report))
		})
	}
}

func TestActionForTarget(t *testing.T) {
	for _, status := range valueobject.AllReportStatuses {
		action, ok := ActionForTarget(status)
		if status == valueobject.ReportStatusReported {
			assert.False(t, ok)
			continue
		}
		assert.True(t, ok, status)
		assert.NotEmpty(t, action)
	}
}
