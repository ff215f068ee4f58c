package Models

import (
	"time"

	"gorm.io/gorm"
)

type RequestStatus string

const (
	RequestPending       RequestStatus = "pending"
	RequestApprovedByRSM RequestStatus = "approved_by_rsm"
	RequestRejectedByRSM RequestStatus = "rejected_by_rsm"
)

func (s RequestStatus) Terminal() bool {
	return s == RequestApprovedByRSM || s == RequestRejectedByRSM
}

// SpareRequest asks a higher-tier location for good stock. It leaves pending
// exactly once.
type SpareRequest struct {
	gorm.Model
	RequesterType   LocationType       `json:"requester_type" gorm:"type:varchar(20);not null;index:idx_request_requester"`
	RequesterID     uint               `json:"requester_id" gorm:"not null;index:idx_request_requester"`
	FulfillerType   LocationType       `json:"fulfiller_type" gorm:"type:varchar(20);not null;index:idx_request_fulfiller"`
	FulfillerID     uint               `json:"fulfiller_id" gorm:"not null;index:idx_request_fulfiller"`
	CallID          *uint              `json:"call_id" gorm:"index"`
	Status          RequestStatus      `json:"status" gorm:"type:varchar(20);not null;index"`
	Notes           string             `json:"notes" gorm:"type:text"`
	RejectionReason string             `json:"rejection_reason" gorm:"type:text"`
	CreatedBy       uint               `json:"created_by"`
	DecidedBy       *uint              `json:"decided_by"`
	DecidedAt       *time.Time         `json:"decided_at"`
	Items           []SpareRequestItem `json:"items" gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
}

func (r SpareRequest) Requester() Location {
	return Location{Type: r.RequesterType, ID: r.RequesterID}
}

func (r SpareRequest) Fulfiller() Location {
	return Location{Type: r.FulfillerType, ID: r.FulfillerID}
}

type SpareRequestItem struct {
	gorm.Model
	RequestID            uint `json:"request_id" gorm:"not null;index"`
	SpareID              uint `json:"spare_id" gorm:"not null;index"`
	RequestedQty         int  `json:"requested_qty" gorm:"not null"`
	ApprovedQty          int  `json:"approved_qty" gorm:"not null;default:0"`
	AvailableQtyAtSource int  `json:"available_qty_at_source" gorm:"not null;default:0"`
	ItemOrder            int  `json:"item_order" gorm:"not null;default:0"`
}

// MaxApprovable is the upper bound for ApprovedQty.
func (i SpareRequestItem) MaxApprovable() int {
	if i.AvailableQtyAtSource < i.RequestedQty {
		return i.AvailableQtyAtSource
	}
	return i.RequestedQty
}
