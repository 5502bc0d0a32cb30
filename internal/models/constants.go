package models

// Роли пользователей
const (
	RoleCitizen = "citizen"
	RoleWorker  = "worker"
	RoleAdmin   = "admin"
)

// WasteType константы типов отходов
const (
	WasteTypePlastic      = "plastic"
	WasteTypeOrganic      = "organic"
	WasteTypePaper        = "paper"
	WasteTypeGlass        = "glass"
	WasteTypeMetal        = "metal"
	WasteTypeElectronic   = "electronic"
	WasteTypeHazardous    = "hazardous"
	WasteTypeConstruction = "construction"
	WasteTypeMixed        = "mixed"
	WasteTypeOther        = "other"
)

// ReportCategory константы категорий обращений
const (
	CategoryIllegalDumping   = "illegal_dumping"
	CategoryOverflowingBin   = "overflowing_bin"
	CategoryLitter           = "litter"
	CategoryMissedCollection = "missed_collection"
	CategoryHazardousSpill   = "hazardous_spill"
	CategoryOther            = "other"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	QuantitySmall     = "small"
	QuantityMedium    = "medium"
	QuantityLarge     = "large"
	QuantityVeryLarge = "very_large"
)

// FacilityType константы типов пунктов приёма
const (
	FacilityRecyclingCenter = "recycling_center"
	FacilityCollectionPoint = "collection_point"
	FacilityLandfill        = "landfill"
	FacilityComposting      = "composting"
	FacilityHazardousWaste  = "hazardous_waste"
	FacilityEWaste          = "e_waste"
)

// Приоритет заявки: чем больше, тем срочнее.
const (
	PriorityMin     = 1
	PriorityDefault = 3
	PriorityMax     = 5
)

// Причины начисления баллов
const (
	RewardReasonReportSubmitted = "report_submitted"
	RewardReasonReportCompleted = "report_completed"
)

// ValidRoles список валидных ролей
var ValidRoles = map[string]struct{}{
	RoleCitizen: {},
	RoleWorker:  {},
	RoleAdmin:   {},
}

// ValidWasteTypes список валидных типов отходов
var ValidWasteTypes = map[string]struct{}{
	WasteTypePlastic:      {},
	WasteTypeOrganic:      {},
	WasteTypePaper:        {},
	WasteTypeGlass:        {},
	WasteTypeMetal:        {},
	WasteTypeElectronic:   {},
	WasteTypeHazardous:    {},
	WasteTypeConstruction: {},
	WasteTypeMixed:        {},
	WasteTypeOther:        {},
}

var ValidSeverities = map[string]struct{}{
	SeverityLow:      {},
	SeverityMedium:   {},
	SeverityHigh:     {},
	SeverityCritical: {},
}

// ValidFacilityTypes список валидных типов пунктов приёма
var ValidFacilityTypes = map[string]struct{}{
	FacilityRecyclingCenter: {},
	FacilityCollectionPoint: {},
	FacilityLandfill:        {},
	FacilityComposting:      {},
	FacilityHazardousWaste:  {},
	FacilityEWaste:          {},
}

var ValidCategories = map[string]struct{}{
	CategoryIllegalDumping:   {},
	CategoryOverflowingBin:   {},
	CategoryLitter:           {},
	CategoryMissedCollection: {},
	CategoryHazardousSpill:   {},
	CategoryOther:            {},
}

var ValidQuantities = map[string]struct{}{
	QuantitySmall:     {},
	QuantityMedium:    {},
	QuantityLarge:     {},
	QuantityVeryLarge: {},
}
