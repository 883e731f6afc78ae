package dto

import "github.com/noah-isme/hris-api/internal/models"

// CreateAssetRequest registers company property.
type CreateAssetRequest struct {
	AssetTag       string  `json:"asset_tag" validate:"required,max=64"`
	Name           string  `json:"name" validate:"required,max=200"`
	Category       string  `json:"category" validate:"required,max=64"`
	SerialNumber   *string `json:"serial_number" validate:"omitempty,max=120"`
	ConditionNotes *string `json:"condition_notes" validate:"omitempty,max=2000"`
}

// AssignAssetRequest hands an asset to an employee.
type AssignAssetRequest struct {
	EmployeeID     string  `json:"employee_id" validate:"required"`
	AssetRequestID *string `json:"asset_request_id"`
}

// ReturnAssetRequest closes custody. Status defaults to AVAILABLE.
type ReturnAssetRequest struct {
	Status models.AssetStatus `json:"status" validate:"omitempty,oneof=AVAILABLE IN_REPAIR RETIRED"`
	Notes  *string            `json:"notes" validate:"omitempty,max=2000"`
}

// AssetNoteRequest carries optional notes for repair and retirement.
type AssetNoteRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=2000"`
}

// AcknowledgeAssignmentRequest optionally references a signed hand-over document.
type AcknowledgeAssignmentRequest struct {
	SignedAttachmentID string `json:"signed_attachment_id"`
}

// SubmitAssetRequest asks HR for equipment.
type SubmitAssetRequest struct {
	Category      string `json:"category" validate:"required,max=64"`
	Justification string `json:"justification" validate:"required,max=4000"`
}

// AssetQuery mirrors asset list filters.
type AssetQuery struct {
	Status   []models.AssetStatus
	Category string
	Search   string
	Page     int
	PageSize int
}

// RejectAssetRequest requires a reason.
type RejectAssetRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// AssetRequestQuery mirrors asset request list filters.
type AssetRequestQuery struct {
	Status   []models.AssetRequestStatus
	Scope    string
	Page     int
	PageSize int
}
