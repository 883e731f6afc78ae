package models

import "time"

// AssetStatus is the lifecycle state of a company asset.
type AssetStatus string

const (
	AssetStatusAvailable AssetStatus = "AVAILABLE"
	AssetStatusAssigned  AssetStatus = "ASSIGNED"
	AssetStatusInRepair  AssetStatus = "IN_REPAIR"
	AssetStatusRetired   AssetStatus = "RETIRED"
)

// Asset is a tracked piece of company property.
type Asset struct {
	ID             string      `db:"id" json:"id"`
	AssetTag       string      `db:"asset_tag" json:"asset_tag"`
	Name           string      `db:"name" json:"name"`
	Category       string      `db:"category" json:"category"`
	SerialNumber   *string     `db:"serial_number" json:"serial_number,omitempty"`
	Status         AssetStatus `db:"status" json:"status"`
	ConditionNotes *string     `db:"condition_notes" json:"condition_notes,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// AssetAssignment records custody of an asset. DateReturned is nil while open.
type AssetAssignment struct {
	ID                 string     `db:"id" json:"id"`
	AssetID            string     `db:"asset_id" json:"asset_id"`
	EmployeeID         string     `db:"employee_id" json:"employee_id"`
	EmployeeUserID     *string    `db:"employee_user_id" json:"employee_user_id,omitempty"`
	EmployeeName       string     `db:"employee_name" json:"employee_name"`
	RequestID          *string    `db:"request_id" json:"request_id,omitempty"`
	DateAssigned       time.Time  `db:"date_assigned" json:"date_assigned"`
	DateReturned       *time.Time `db:"date_returned" json:"date_returned,omitempty"`
	AssignedBy         string     `db:"assigned_by" json:"assigned_by"`
	ReturnNotes        *string    `db:"return_notes" json:"return_notes,omitempty"`
	IsAcknowledged     bool       `db:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedAt     *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	SignedDocumentPath *string    `db:"signed_document_path" json:"signed_document_path,omitempty"`
}

// AssetDetail is an asset with its assignment history, newest first.
type AssetDetail struct {
	Asset
	Assignments []AssetAssignment `json:"assignments"`
}

// AssetFilter narrows asset listings.
type AssetFilter struct {
	Status   []AssetStatus
	Category string
	Search   string
	Page     int
	PageSize int
}

// AssetRequestStatus is the state of an employee's request for equipment.
type AssetRequestStatus string

const (
	AssetRequestPending   AssetRequestStatus = "PENDING"
	AssetRequestApproved  AssetRequestStatus = "APPROVED"
	AssetRequestRejected  AssetRequestStatus = "REJECTED"
	AssetRequestFulfilled AssetRequestStatus = "FULFILLED"
)

// AssetRequest is an employee asking HR for equipment of a category.
type AssetRequest struct {
	ID                    string             `db:"id" json:"id"`
	RequesterID           string             `db:"requester_id" json:"requester_id"`
	RequesterUserID       string             `db:"requester_user_id" json:"requester_user_id"`
	RequesterName         string             `db:"requester_name" json:"requester_name"`
	Category              string             `db:"category" json:"category"`
	Justification         string             `db:"justification" json:"justification"`
	Status                AssetRequestStatus `db:"status" json:"status"`
	ReviewedBy            *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt            *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason       *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	FulfilledAssignmentID *string            `db:"fulfilled_assignment_id" json:"fulfilled_assignment_id,omitempty"`
	SubmissionDate        time.Time          `db:"submission_date" json:"submission_date"`
	UpdatedAt             time.Time          `db:"updated_at" json:"updated_at"`
}

// AssetRequestFilter narrows asset request listings.
type AssetRequestFilter struct {
	Status          []AssetRequestStatus
	RequesterUserID string
	Page            int
	PageSize        int
}
