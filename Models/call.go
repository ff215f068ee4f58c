package Models

import (
	"time"

	"gorm.io/gorm"
)

type CallStatus string

const (
	CallOpen   CallStatus = "open"
	CallClosed CallStatus = "closed"
)

// ServiceCall belongs to the complaint service. The engine reads the
// assignment and flips Status to closed when the call is settled.
type ServiceCall struct {
	gorm.Model
	AssignedTechnicianID uint       `json:"assigned_technician_id" gorm:"index"`
	ServiceCenterID      uint       `json:"service_center_id" gorm:"index"`
	Status               CallStatus `json:"status" gorm:"type:varchar(16);not null;default:'open'"`
	ClosedAt             *time.Time `json:"closed_at"`
}

type UsageStatus string

const (
	UsageNotUsed UsageStatus = "NOT_USED"
	UsagePartial UsageStatus = "PARTIAL"
	UsageUsed    UsageStatus = "USED"
)

// CallSpareUsage tracks what happened to the quantity issued for one spare on
// one call. AppliedQty is the part of UsedQty already converted from good to
// defective in the technician's ledger.
type CallSpareUsage struct {
	gorm.Model
	CallID       uint        `json:"call_id" gorm:"not null;uniqueIndex:idx_usage_call_spare,priority:1"`
	SpareID      uint        `json:"spare_id" gorm:"not null;uniqueIndex:idx_usage_call_spare,priority:2"`
	TechnicianID uint        `json:"technician_id" gorm:"not null;index"`
	IssuedQty    int         `json:"issued_qty" gorm:"not null"`
	UsedQty      int         `json:"used_qty" gorm:"not null;default:0"`
	ReturnedQty  int         `json:"returned_qty" gorm:"not null;default:0"`
	AppliedQty   int         `json:"applied_qty" gorm:"not null;default:0"`
	UsageStatus  UsageStatus `json:"usage_status" gorm:"type:varchar(16);not null"`
	IssuedFrom   string      `json:"issued_from" gorm:"size:16"`
}

// ComputeUsageStatus derives the usage status from issued and used quantity.
func ComputeUsageStatus(issued, used int) UsageStatus {
	switch {
	case used <= 0:
		return UsageNotUsed
	case used >= issued:
		return UsageUsed
	default:
		return UsagePartial
	}
}
