// Package Calls records spare consumption against service calls and keeps the
// call's turnaround clock, including holds and the final settlement on close.
package Calls

import (
	"errors"
	"fmt"
	"time"

	"SpareLink/Inventory"
	"SpareLink/Models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB        *gorm.DB
	Movements *Inventory.MovementLog
	Calls     Models.CallDirectory
	Spares    Models.SpareCatalog
	// SLAMinutes is the net TAT after which a call counts as breached. Zero
	// disables breach flagging.
	SLAMinutes int
	Now        func() time.Time
}

func NewService(db *gorm.DB, movements *Inventory.MovementLog, slaMinutes int) *Service {
	return &Service{
		DB:         db,
		Movements:  movements,
		Calls:      Models.TableCallDirectory{},
		Spares:     Models.TableSpareCatalog{},
		SLAMinutes: slaMinutes,
		Now:        time.Now,
	}
}

// assignment resolves the call and checks the principal works it, either as
// the assigned technician or through the service center.
func (s *Service) assignment(tx *gorm.DB, p Models.Principal, callID uint, action string) (Models.CallAssignment, error) {
	call, err := s.Calls.Lookup(tx, callID)
	if err != nil {
		return call, err
	}
	center := Models.Location{Type: Models.LocationServiceCenter, ID: call.ServiceCenterID}
	if !p.Manages(call.Technician()) && !p.Manages(center) {
		return call, &Models.PermissionError{Action: action, Location: call.Technician()}
	}
	return call, nil
}

func requireOpen(call Models.CallAssignment, action string) error {
	if call.Status == Models.CallClosed {
		return &Models.InvalidStateError{Entity: "call", ID: call.CallID, State: string(call.Status), Action: action}
	}
	return nil
}

func lockTracking(tx *gorm.DB, callID uint) (Models.TATTracking, bool, error) {
	var tat Models.TATTracking
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("call_id = ?", callID).First(&tat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tat, false, nil
	}
	if err != nil {
		return tat, false, fmt.Errorf("load tat tracking: %w", err)
	}
	return tat, true, nil
}

func openHold(tx *gorm.DB, callID uint) (Models.TATHold, bool, error) {
	var hold Models.TATHold
	err := tx.Where("call_id = ? AND hold_end_time IS NULL", callID).Limit(1).Find(&hold).Error
	if err != nil {
		return hold, false, fmt.Errorf("load open hold: %w", err)
	}
	return hold, hold.ID != 0, nil
}

// endHold closes an open hold at the given time and adds its minutes to the
// call's tracking. The hold_end_time guard keeps a hold from being counted
// twice.
func endHold(tx *gorm.DB, hold *Models.TATHold, at time.Time) error {
	minutes := Models.HoldMinutes(hold.HoldStartTime, at)
	res := tx.Model(&Models.TATHold{}).
		Where("id = ? AND hold_end_time IS NULL", hold.ID).
		Updates(map[string]any{"hold_end_time": at, "minutes": minutes})
	if res.Error != nil {
		return fmt.Errorf("close hold: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &Models.InvalidStateError{Entity: "hold", ID: hold.ID, State: "closed", Action: "close"}
	}

	if minutes > 0 {
		err := tx.Model(&Models.TATTracking{}).
			Where("call_id = ?", hold.CallID).
			Update("total_hold_minutes", gorm.Expr("total_hold_minutes + ?", minutes)).Error
		if err != nil {
			return fmt.Errorf("add hold minutes: %w", err)
		}
	}
	hold.HoldEndTime = &at
	hold.Minutes = minutes
	return nil
}
