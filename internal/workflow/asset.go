package workflow

import (
	"github.com/noah-isme/hris-api/internal/models"
)

const (
	AssetAssign         Action = "assign"
	AssetReturn         Action = "return"
	AssetSendToRepair   Action = "send_to_repair"
	AssetCompleteRepair Action = "complete_repair"
	AssetRetire         Action = "retire"

	AssetRequestApprove Action = "approve"
	AssetRequestReject  Action = "reject"
	AssetRequestFulfill Action = "fulfill"
)

// Assets is the asset lifecycle.
var Assets = Table[models.AssetStatus]{
	Entity: models.EntityAsset,
	Rules: map[Action]Rule[models.AssetStatus]{
		AssetAssign: {
			From: []models.AssetStatus{models.AssetStatusAvailable},
			To:   []models.AssetStatus{models.AssetStatusAssigned},
		},
		AssetReturn: {
			From: []models.AssetStatus{models.AssetStatusAssigned},
			To:   []models.AssetStatus{models.AssetStatusAvailable, models.AssetStatusInRepair, models.AssetStatusRetired},
		},
		AssetSendToRepair: {
			From: []models.AssetStatus{models.AssetStatusAvailable},
			To:   []models.AssetStatus{models.AssetStatusInRepair},
		},
		AssetCompleteRepair: {
			From: []models.AssetStatus{models.AssetStatusInRepair},
			To:   []models.AssetStatus{models.AssetStatusAvailable},
		},
		AssetRetire: {
			From: []models.AssetStatus{models.AssetStatusAvailable, models.AssetStatusInRepair},
			To:   []models.AssetStatus{models.AssetStatusRetired},
		},
	},
}

// AssetRequests is the equipment request workflow.
var AssetRequests = Table[models.AssetRequestStatus]{
	Entity: models.EntityAssetRequest,
	Rules: map[Action]Rule[models.AssetRequestStatus]{
		AssetRequestApprove: {
			From: []models.AssetRequestStatus{models.AssetRequestPending},
			To:   []models.AssetRequestStatus{models.AssetRequestApproved},
		},
		AssetRequestReject: {
			From: []models.AssetRequestStatus{models.AssetRequestPending},
			To:   []models.AssetRequestStatus{models.AssetRequestRejected},
		},
		AssetRequestFulfill: {
			From: []models.AssetRequestStatus{models.AssetRequestApproved},
			To:   []models.AssetRequestStatus{models.AssetRequestFulfilled},
		},
	},
}

// ReturnTarget maps the requested post-return status, defaulting to AVAILABLE.
func ReturnTarget(requested models.AssetStatus) (models.AssetStatus, error) {
	if requested == "" {
		requested = models.AssetStatusAvailable
	}
	if err := Assets.Check(AssetReturn, models.AssetStatusAssigned, requested); err != nil {
		return "", err
	}
	return requested, nil
}
