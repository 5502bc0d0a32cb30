package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/wastewatch-backend/internal/dto"
	"github.com/ignatzorin/wastewatch-backend/internal/models"
	"github.com/ignatzorin/wastewatch-backend/internal/pkg/apperror"
)

func ptr[T any](v T) *T { return &v }

func validReport() dto.CreateReportRequest {
	return dto.CreateReportRequest{
		Longitude:         ptr(80.27),
		Latitude:          ptr(13.08),
		WasteType:         models.WasteTypeGlass,
		Category:          models.CategoryLitter,
		Severity:          models.SeverityLow,
		EstimatedQuantity: models.QuantitySmall,
	}
}

func TestStruct_ValidReport(t *testing.T) {
	assert.NoError(t, Struct(validReport()))
}

func TestStruct_FieldErrors(t *testing.T) {
	req := validReport()
	req.WasteType = "uranium"
	req.Latitude = ptr(95.0)
	req.EstimatedQuantity = ""

	err := Struct(req)
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	fields, ok := appErr.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "waste_type")
	assert.Contains(t, fields, "latitude")
	assert.Contains(t, fields, "estimated_quantity")
	assert.NotContains(t, fields, "category")
}

func TestStruct_Enums(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.CreateReportRequest)
	}{
		{"категория", func(r *dto.CreateReportRequest) { r.Category = "graffiti" }},
		{"серьёзность", func(r *dto.CreateReportRequest) { r.Severity = "extreme" }},
		{"объём", func(r *dto.CreateReportRequest) { r.EstimatedQuantity = "huge" }},
		{"долгота", func(r *dto.CreateReportRequest) { r.Longitude = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validReport()
			tt.mutate(&req)
			assert.True(t, apperror.IsValidation(Struct(req)))
		})
	}
}

func TestStruct_Facility(t *testing.T) {
	req := dto.CreateFacilityRequest{
		Name:               "Пункт",
		Type:               models.FacilityLandfill,
		Longitude:          ptr(80.0),
		Latitude:           ptr(13.0),
		AcceptedWasteTypes: []string{models.WasteTypeMixed},
	}
	assert.NoError(t, Struct(req))

	req.AcceptedWasteTypes = []string{models.WasteTypeMixed, "moon_rock"}
	assert.Error(t, Struct(req))

	req.AcceptedWasteTypes = nil
	assert.Error(t, Struct(req))
}

func TestValidateLength(t *testing.T) {
	assert.NoError(t, ValidateLength("описание", "ёжик", 1, 4))
	assert.Error(t, ValidateLength("описание", "ёжики", 1, 4))
	assert.Error(t, ValidateLength("описание", "", 1, 4))
}
