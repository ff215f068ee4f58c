package Models

import (
	"time"

	"gorm.io/gorm"
)

type ReturnStatus string

const (
	ReturnSubmitted ReturnStatus = "submitted"
	ReturnReceived  ReturnStatus = "received"
	ReturnVerified  ReturnStatus = "verified"
	ReturnRejected  ReturnStatus = "rejected"
)

type ReturnItemType string

const (
	ReturnItemDefective ReturnItemType = "defective"
	ReturnItemUnused    ReturnItemType = "unused"
)

func (t ReturnItemType) Valid() bool {
	return t == ReturnItemDefective || t == ReturnItemUnused
}

// DestinationCondition is the bucket the item lands in at the receiver.
func (t ReturnItemType) DestinationCondition() Condition {
	if t == ReturnItemDefective {
		return ConditionDefective
	}
	return ConditionGood
}

// ReturnRequest sends parts upstream. Receipt is only an acknowledgement;
// stock moves when the receiver verifies.
type ReturnRequest struct {
	gorm.Model
	HolderType      LocationType `json:"holder_type" gorm:"type:varchar(20);not null;index:idx_return_holder"`
	HolderID        uint         `json:"holder_id" gorm:"not null;index:idx_return_holder"`
	ReceiverType    LocationType `json:"receiver_type" gorm:"type:varchar(20);not null;index:idx_return_receiver"`
	ReceiverID      uint         `json:"receiver_id" gorm:"not null;index:idx_return_receiver"`
	Status          ReturnStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	Notes           string       `json:"notes" gorm:"type:text"`
	RejectionReason string       `json:"rejection_reason" gorm:"type:text"`
	CreatedBy       uint         `json:"created_by"`
	ReceivedBy      *uint        `json:"received_by"`
	ReceivedAt      *time.Time   `json:"received_at"`
	VerifiedBy      *uint        `json:"verified_by"`
	VerifiedAt      *time.Time   `json:"verified_at"`
	Items           []ReturnItem `json:"items" gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE"`
}

func (r ReturnRequest) Holder() Location {
	return Location{Type: r.HolderType, ID: r.HolderID}
}

func (r ReturnRequest) Receiver() Location {
	return Location{Type: r.ReceiverType, ID: r.ReceiverID}
}

type ReturnItem struct {
	gorm.Model
	ReturnID     uint           `json:"return_id" gorm:"not null;index"`
	SpareID      uint           `json:"spare_id" gorm:"not null;index"`
	ItemType     ReturnItemType `json:"item_type" gorm:"type:varchar(16);not null"`
	RequestedQty int            `json:"requested_qty" gorm:"not null"`
	ReceivedQty  int            `json:"received_qty" gorm:"not null;default:0"`
	VerifiedQty  int            `json:"verified_qty" gorm:"not null;default:0"`
	DefectReason string         `json:"defect_reason" gorm:"type:text"`
	ItemOrder    int            `json:"item_order" gorm:"not null;default:0"`
}
