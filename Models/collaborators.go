package Models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CallAssignment is what the complaint service tells us about a call.
type CallAssignment struct {
	CallID          uint
	TechnicianID    uint
	ServiceCenterID uint
	Status          CallStatus
}

func (a CallAssignment) Technician() Location {
	return Location{Type: LocationTechnician, ID: a.TechnicianID}
}

// CallDirectory resolves calls and their assigned technician. It is called
// with the caller's transaction so reads and the final close stay atomic.
type CallDirectory interface {
	Lookup(tx *gorm.DB, callID uint) (CallAssignment, error)
	MarkClosed(tx *gorm.DB, callID uint, at time.Time) error
}

// SpareCatalog is the read-only view of spare master data.
type SpareCatalog interface {
	Lookup(tx *gorm.DB, spareID uint) (SparePart, error)
}

// TableCallDirectory reads calls from the shared service_calls table.
type TableCallDirectory struct{}

func (TableCallDirectory) Lookup(tx *gorm.DB, callID uint) (CallAssignment, error) {
	var call ServiceCall
	if err := tx.First(&call, callID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CallAssignment{}, &NotFoundError{Entity: "call", ID: callID}
		}
		return CallAssignment{}, fmt.Errorf("lookup call %d: %w", callID, err)
	}
	return CallAssignment{
		CallID:          call.ID,
		TechnicianID:    call.AssignedTechnicianID,
		ServiceCenterID: call.ServiceCenterID,
		Status:          call.Status,
	}, nil
}

func (TableCallDirectory) MarkClosed(tx *gorm.DB, callID uint, at time.Time) error {
	res := tx.Model(&ServiceCall{}).
		Where("id = ? AND status <> ?", callID, CallClosed).
		Updates(map[string]any{"status": CallClosed, "closed_at": at})
	if res.Error != nil {
		return fmt.Errorf("close call %d: %w", callID, res.Error)
	}
	if res.RowsAffected == 0 {
		return &InvalidStateError{Entity: "call", ID: callID, State: string(CallClosed), Action: "close"}
	}
	return nil
}

// TableSpareCatalog reads spare_parts directly.
type TableSpareCatalog struct{}

func (TableSpareCatalog) Lookup(tx *gorm.DB, spareID uint) (SparePart, error) {
	var spare SparePart
	if err := tx.First(&spare, spareID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SparePart{}, &NotFoundError{Entity: "spare part", ID: spareID}
		}
		return SparePart{}, fmt.Errorf("lookup spare %d: %w", spareID, err)
	}
	return spare, nil
}
