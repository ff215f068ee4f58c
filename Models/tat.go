package Models

import "time"

type TATStatus string

const (
	TATInProgress TATStatus = "in_progress"
	TATResolved   TATStatus = "resolved"
)

// TATTracking is the turnaround clock of one call.
type TATTracking struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	CallID           uint       `json:"call_id" gorm:"not null;uniqueIndex"`
	TATStartTime     time.Time  `json:"tat_start_time" gorm:"not null"`
	TATEndTime       *time.Time `json:"tat_end_time"`
	Status           TATStatus  `json:"status" gorm:"type:varchar(16);not null;index"`
	TotalHoldMinutes int        `json:"total_hold_minutes" gorm:"not null;default:0"`
	Breached         bool       `json:"breached" gorm:"not null;default:false"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (TATTracking) TableName() string {
	return "tat_trackings"
}

// TATHold pauses the clock. HoldEndTime is nil while the hold is open.
type TATHold struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	CallID        uint       `json:"call_id" gorm:"not null;index"`
	HoldReason    string     `json:"hold_reason" gorm:"type:text;not null"`
	HoldStartTime time.Time  `json:"hold_start_time" gorm:"not null"`
	HoldEndTime   *time.Time `json:"hold_end_time"`
	Minutes       int        `json:"minutes" gorm:"not null;default:0"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (TATHold) TableName() string {
	return "tat_holds"
}

func (h TATHold) Open() bool {
	return h.HoldEndTime == nil
}

// HoldMinutes is the whole number of minutes between start and end.
func HoldMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// TATBreach is a call newly found past its SLA.
type TATBreach struct {
	CallID       uint `json:"call_id"`
	TechnicianID uint `json:"technician_id"`
	NetMinutes   int  `json:"net_minutes"`
	SLAMinutes   int  `json:"sla_minutes"`
}
