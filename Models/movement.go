package Models

import (
	"time"

	"gorm.io/datatypes"
)

type MovementType string

const (
	MovementReplenishment         MovementType = "REPLENISHMENT"
	MovementDefectiveMarking      MovementType = "DEFECTIVE_MARKING"
	MovementReturnTransfer        MovementType = "RETURN_TRANSFER"
	MovementConsumptionSettlement MovementType = "CONSUMPTION_SETTLEMENT"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementReplenishment, MovementDefectiveMarking, MovementReturnTransfer, MovementConsumptionSettlement:
		return true
	}
	return false
}

type MovementStatus string

const (
	MovementCreated   MovementStatus = "created"
	MovementCompleted MovementStatus = "completed"
)

// Reference types linking a movement back to the business event behind it.
const (
	ReferenceSpareRequest  = "spare_request"
	ReferenceReturnRequest = "return_request"
	ReferenceCall          = "call"
)

// StockMovement is an append-only ledger entry. Rows are never updated except
// for the created -> completed status flip inside the creating transaction.
type StockMovement struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	MovementNo      string         `json:"movement_no" gorm:"size:36;not null;uniqueIndex"`
	Type            MovementType   `json:"type" gorm:"type:varchar(32);not null;index"`
	SourceType      LocationType   `json:"source_type,omitempty" gorm:"type:varchar(20);index:idx_movement_source"`
	SourceID        uint           `json:"source_id,omitempty" gorm:"index:idx_movement_source"`
	DestinationType LocationType   `json:"destination_type,omitempty" gorm:"type:varchar(20);index:idx_movement_destination"`
	DestinationID   uint           `json:"destination_id,omitempty" gorm:"index:idx_movement_destination"`
	TotalQty        int            `json:"total_qty" gorm:"not null"`
	ReferenceType   string         `json:"reference_type" gorm:"size:32;not null;index:idx_movement_reference"`
	ReferenceID     uint           `json:"reference_id" gorm:"not null;index:idx_movement_reference"`
	Status          MovementStatus `json:"status" gorm:"type:varchar(16);not null"`
	CreatedBy       uint           `json:"created_by"`
	Notes           string         `json:"notes" gorm:"type:text"`
	Metadata        datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at" gorm:"index"`
	Items           []MovementItem `json:"items" gorm:"foreignKey:MovementID"`
}

func (m StockMovement) Source() *Location {
	if m.SourceType == "" {
		return nil
	}
	return &Location{Type: m.SourceType, ID: m.SourceID}
}

func (m StockMovement) Destination() *Location {
	if m.DestinationType == "" {
		return nil
	}
	return &Location{Type: m.DestinationType, ID: m.DestinationID}
}

// MovementItem debits SourceCondition at the source and credits Condition at
// the destination. A bucket change inside one location uses the same place
// on both sides.
type MovementItem struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	MovementID      uint      `json:"movement_id" gorm:"not null;index"`
	SpareID         uint      `json:"spare_id" gorm:"not null;index"`
	Qty             int       `json:"qty" gorm:"not null"`
	Condition       Condition `json:"condition" gorm:"type:varchar(16);not null"`
	SourceCondition Condition `json:"source_condition" gorm:"type:varchar(16);not null"`
}
