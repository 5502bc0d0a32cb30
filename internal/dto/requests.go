package dto

// CreateReportRequest поля multipart-формы новой заявки. Изображения передаются отдельно.
type CreateReportRequest struct {
	Longitude         *float64 `form:"longitude" json:"longitude" validate:"required,min=-180,max=180"`
	Latitude          *float64 `form:"latitude" json:"latitude" validate:"required,min=-90,max=90"`
	Address           string   `form:"address" json:"address" validate:"max=300"`
	WasteType         string   `form:"waste_type" json:"waste_type" validate:"required,waste_type"`
	Category          string   `form:"category" json:"category" validate:"required,report_category"`
	Severity          string   `form:"severity" json:"severity" validate:"required,severity"`
	EstimatedQuantity string   `form:"estimated_quantity" json:"estimated_quantity" validate:"required,quantity"`
	Description       string   `form:"description" json:"description" validate:"max=1000"`
}

// ImageUpload одно загружаемое изображение.
type ImageUpload struct {
	OriginalName string
	Data         []byte
}

// UpdateStatusRequest смена статуса заявки.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" validate:"max=1000"`
}

// AssignReportRequest административное назначение исполнителя.
type AssignReportRequest struct {
	WorkerID string `json:"worker_id" binding:"required" validate:"uuid"`
}

// UpdateReportRequest правка заявки администратором; пустые поля не меняются.
type UpdateReportRequest struct {
	WasteType         *string `json:"waste_type" validate:"omitempty,waste_type"`
	Category          *string `json:"category" validate:"omitempty,report_category"`
	Severity          *string `json:"severity" validate:"omitempty,severity"`
	EstimatedQuantity *string `json:"estimated_quantity" validate:"omitempty,quantity"`
	Priority          *int    `json:"priority" validate:"omitempty,min=1,max=5"`
}

// IsEmpty true, если ни одно поле не задано.
func (r *UpdateReportRequest) IsEmpty() bool {
	return r.WasteType == nil && r.Category == nil && r.Severity == nil &&
		r.EstimatedQuantity == nil && r.Priority == nil
}

// ListReportsQuery параметры списка заявок.
type ListReportsQuery struct {
	Status    string `form:"status"`
	WasteType string `form:"waste_type" validate:"omitempty,waste_type"`
	ViewType  string `form:"view_type" validate:"omitempty,oneof=mine assigned all"`
	Limit     int    `form:"limit" validate:"omitempty,min=1,max=100"`
	Offset    int    `form:"offset" validate:"omitempty,min=0"`
}

// AvailableReportsQuery фильтры свободных заявок.
type AvailableReportsQuery struct {
	WasteType string `form:"waste_type" validate:"omitempty,waste_type"`
	Severity  string `form:"severity" validate:"omitempty,severity"`
	Limit     int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// NearbyReportsQuery поиск заявок рядом. Координаты задаются парой; без них возвращается обычный список.
type NearbyReportsQuery struct {
	Longitude       *float64 `form:"longitude" validate:"omitempty,min=-180,max=180"`
	Latitude        *float64 `form:"latitude" validate:"omitempty,min=-90,max=90"`
	Radius          *float64 `form:"radius" validate:"omitempty,gt=0,lte=20015087"`
	WasteType       string   `form:"waste_type" validate:"omitempty,waste_type"`
	IncludeAssigned bool     `form:"includeAssigned"`
}

// NearbyFacilitiesQuery поиск пунктов приёма рядом.
type NearbyFacilitiesQuery struct {
	Longitude  *float64 `form:"longitude" validate:"omitempty,min=-180,max=180"`
	Latitude   *float64 `form:"latitude" validate:"omitempty,min=-90,max=90"`
	Radius     *float64 `form:"radius" validate:"omitempty,gt=0,lte=20015087"`
	Type       string   `form:"type" validate:"omitempty,facility_type"`
	WasteTypes []string `form:"waste_types" validate:"omitempty,dive,waste_type"`
}

// CreateFacilityRequest новый пункт приёма.
type CreateFacilityRequest struct {
	Name               string          `json:"name" validate:"required,min=2,max=200"`
	Type               string          `json:"type" validate:"required,facility_type"`
	Longitude          *float64        `json:"longitude" validate:"required,min=-180,max=180"`
	Latitude           *float64        `json:"latitude" validate:"required,min=-90,max=90"`
	Address            string          `json:"address" validate:"max=300"`
	AcceptedWasteTypes []string        `json:"accepted_waste_types" validate:"required,min=1,dive,waste_type"`
	OperatingHours     string          `json:"operating_hours" validate:"max=200"`
	Contact            FacilityContact `json:"contact"`
}

type FacilityContact struct {
	Phone   string `json:"phone" validate:"omitempty,max=50"`
	Email   string `json:"email" validate:"omitempty,email"`
	Website string `json:"website" validate:"omitempty,url"`
}
