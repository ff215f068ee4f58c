// Package Requests runs the spare request workflow: a technician or service
// center asks a higher-tier location for good stock and a manager of that
// location approves or rejects it exactly once.
package Requests

import (
	"errors"
	"fmt"
	"log"
	"time"

	"SpareLink/Inventory"
	"SpareLink/Models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	DB        *gorm.DB
	Movements *Inventory.MovementLog
	Spares    Models.SpareCatalog
	Calls     Models.CallDirectory
	Now       func() time.Time
}

func NewService(db *gorm.DB, movements *Inventory.MovementLog) *Service {
	return &Service{
		DB:        db,
		Movements: movements,
		Spares:    Models.TableSpareCatalog{},
		Calls:     Models.TableCallDirectory{},
		Now:       time.Now,
	}
}

type ItemInput struct {
	SpareID uint
	Qty     int
}

type SubmitInput struct {
	Fulfiller Models.Location
	CallID    *uint
	Notes     string
	Items     []ItemInput
}

// Decision is the approved quantity for one request item.
type Decision struct {
	ItemID      uint
	ApprovedQty int
}

type Filter struct {
	Status    Models.RequestStatus
	Requester *Models.Location
	Fulfiller *Models.Location
	CallID    uint
	Limit     int
}

// Submit creates a pending request from the principal's own location. The
// fulfiller's good stock is snapshotted per item and bounds later approval.
func (s *Service) Submit(p Models.Principal, in SubmitInput) (*Models.SpareRequest, error) {
	requester := p.Location
	if !requester.Valid() {
		return nil, Models.Invalid("requester", "principal has no stock location")
	}
	if !in.Fulfiller.Valid() {
		return nil, Models.Invalid("fulfiller", "invalid location %s", in.Fulfiller)
	}
	if in.Fulfiller.Type.Tier() <= requester.Type.Tier() {
		return nil, Models.Invalid("fulfiller", "%s cannot request stock from %s", requester, in.Fulfiller)
	}
	if len(in.Items) == 0 {
		return nil, Models.Invalid("items", "request has no items")
	}

	var violations []Models.Violation
	seen := make(map[uint]bool, len(in.Items))
	for i, item := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		switch {
		case item.SpareID == 0:
			violations = append(violations, Models.Violation{Field: field + ".spare_id", Message: "spare id is required"})
		case seen[item.SpareID]:
			violations = append(violations, Models.Violation{SpareID: item.SpareID, Field: field + ".spare_id",
				Message: fmt.Sprintf("spare %d listed more than once", item.SpareID)})
		}
		if item.Qty <= 0 {
			violations = append(violations, Models.Violation{SpareID: item.SpareID, Field: field + ".requested_qty",
				Value: item.Qty, Message: fmt.Sprintf("requested quantity must be positive, got %d", item.Qty)})
		}
		seen[item.SpareID] = true
	}
	if len(violations) > 0 {
		return nil, &Models.ValidationError{Field: "items", Message: "invalid request", Violations: violations}
	}

	req := Models.SpareRequest{
		RequesterType: requester.Type,
		RequesterID:   requester.ID,
		FulfillerType: in.Fulfiller.Type,
		FulfillerID:   in.Fulfiller.ID,
		CallID:        in.CallID,
		Status:        Models.RequestPending,
		Notes:         in.Notes,
		CreatedBy:     p.UserID,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if in.CallID != nil {
			call, err := s.Calls.Lookup(tx, *in.CallID)
			if err != nil {
				return err
			}
			if call.Status == Models.CallClosed {
				return &Models.InvalidStateError{Entity: "call", ID: call.CallID, State: string(call.Status), Action: "request spares for"}
			}
		}

		for i, item := range in.Items {
			if _, err := s.Spares.Lookup(tx, item.SpareID); err != nil {
				return err
			}
			stock, err := Inventory.GetQuantities(tx, item.SpareID, in.Fulfiller)
			if err != nil {
				return err
			}
			req.Items = append(req.Items, Models.SpareRequestItem{
				SpareID:              item.SpareID,
				RequestedQty:         item.Qty,
				AvailableQtyAtSource: stock.QtyGood,
				ItemOrder:            i,
			})
		}

		if err := tx.Create(&req).Error; err != nil {
			return fmt.Errorf("create spare request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Spare request %d submitted by %s to %s (%d items)", req.ID, requester, in.Fulfiller, len(req.Items))
	return &req, nil
}

// Approve decides a pending request. Items without a decision are approved
// with zero. Any out-of-bound decision fails the whole call and lists every
// offending item; nothing is clamped.
func (s *Service) Approve(p Models.Principal, requestID uint, decisions []Decision) (*Models.SpareRequest, error) {
	var req Models.SpareRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = lockPending(tx, requestID, "approve")
		if err != nil {
			return err
		}
		if !p.Manages(req.Fulfiller()) {
			return &Models.PermissionError{Action: "approve requests", Location: req.Fulfiller()}
		}

		approved, err := checkDecisions(req.Items, decisions)
		if err != nil {
			return err
		}

		now := s.Now()
		if err := transition(tx, requestID, Models.RequestApprovedByRSM, map[string]any{
			"decided_by": p.UserID,
			"decided_at": now,
		}); err != nil {
			return err
		}

		var lines []Inventory.Line
		for i := range req.Items {
			item := &req.Items[i]
			item.ApprovedQty = approved[item.ID]
			if err := tx.Model(item).Update("approved_qty", item.ApprovedQty).Error; err != nil {
				return fmt.Errorf("update approved quantity: %w", err)
			}
			if item.ApprovedQty > 0 {
				lines = append(lines, Inventory.Line{SpareID: item.SpareID, Qty: item.ApprovedQty})
			}
		}

		if len(lines) > 0 {
			source, destination := req.Fulfiller(), req.Requester()
			metadata := map[string]any{"approved_by": p.Name, "role": p.Role}
			if req.CallID != nil {
				metadata["call_id"] = *req.CallID
			}
			if _, err := s.Movements.Record(tx, Inventory.MovementInput{
				Type:          Models.MovementReplenishment,
				Source:        &source,
				Destination:   &destination,
				ReferenceType: Models.ReferenceSpareRequest,
				ReferenceID:   req.ID,
				CreatedBy:     p.UserID,
				Metadata:      metadata,
				Lines:         lines,
			}); err != nil {
				return err
			}
		}

		req.Status = Models.RequestApprovedByRSM
		req.DecidedBy = &p.UserID
		req.DecidedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Spare request %d approved by %s", requestID, p.Name)
	return &req, nil
}

// Reject closes a pending request without touching stock.
func (s *Service) Reject(p Models.Principal, requestID uint, reason string) (*Models.SpareRequest, error) {
	if reason == "" {
		return nil, Models.Invalid("reason", "rejection reason is required")
	}

	var req Models.SpareRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = lockPending(tx, requestID, "reject")
		if err != nil {
			return err
		}
		if !p.Manages(req.Fulfiller()) {
			return &Models.PermissionError{Action: "reject requests", Location: req.Fulfiller()}
		}

		now := s.Now()
		if err := transition(tx, requestID, Models.RequestRejectedByRSM, map[string]any{
			"rejection_reason": reason,
			"decided_by":       p.UserID,
			"decided_at":       now,
		}); err != nil {
			return err
		}
		req.Status = Models.RequestRejectedByRSM
		req.RejectionReason = reason
		req.DecidedBy = &p.UserID
		req.DecidedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Spare request %d rejected by %s: %s", requestID, p.Name, reason)
	return &req, nil
}

func (s *Service) Get(requestID uint) (*Models.SpareRequest, error) {
	var req Models.SpareRequest
	err := s.DB.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("item_order ASC")
	}).First(&req, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Models.NotFoundError{Entity: "spare request", ID: requestID}
	}
	if err != nil {
		return nil, fmt.Errorf("get spare request: %w", err)
	}
	return &req, nil
}

func (s *Service) List(f Filter) ([]Models.SpareRequest, error) {
	query := s.DB.Model(&Models.SpareRequest{}).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("item_order ASC")
	})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Requester != nil {
		query = query.Where("requester_type = ? AND requester_id = ?", f.Requester.Type, f.Requester.ID)
	}
	if f.Fulfiller != nil {
		query = query.Where("fulfiller_type = ? AND fulfiller_id = ?", f.Fulfiller.Type, f.Fulfiller.ID)
	}
	if f.CallID != 0 {
		query = query.Where("call_id = ?", f.CallID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var requests []Models.SpareRequest
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("list spare requests: %w", err)
	}
	return requests, nil
}

// lockPending loads the request under a row lock and fails unless it is
// still pending.
func lockPending(tx *gorm.DB, requestID uint, action string) (Models.SpareRequest, error) {
	var req Models.SpareRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("item_order ASC")
		}).
		First(&req, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return req, &Models.NotFoundError{Entity: "spare request", ID: requestID}
	}
	if err != nil {
		return req, fmt.Errorf("load spare request: %w", err)
	}
	if req.Status != Models.RequestPending {
		return req, &Models.InvalidStateError{Entity: "spare request", ID: requestID, State: string(req.Status), Action: action}
	}
	return req, nil
}

// transition moves a pending request to a terminal status. The status guard
// in the WHERE clause makes a concurrent second decision affect no rows.
func transition(tx *gorm.DB, requestID uint, to Models.RequestStatus, fields map[string]any) error {
	fields["status"] = to
	res := tx.Model(&Models.SpareRequest{}).
		Where("id = ? AND status = ?", requestID, Models.RequestPending).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update spare request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &Models.InvalidStateError{Entity: "spare request", ID: requestID, State: "decided", Action: string(to)}
	}
	return nil
}

// checkDecisions validates decisions against the items and returns the
// approved quantity per item id.
func checkDecisions(items []Models.SpareRequestItem, decisions []Decision) (map[uint]int, error) {
	byID := make(map[uint]Models.SpareRequestItem, len(items))
	approved := make(map[uint]int, len(items))
	for _, item := range items {
		byID[item.ID] = item
		approved[item.ID] = 0
	}

	var violations []Models.Violation
	decided := make(map[uint]bool, len(decisions))
	for _, d := range decisions {
		item, ok := byID[d.ItemID]
		switch {
		case !ok:
			violations = append(violations, Models.Violation{ItemID: d.ItemID, Field: "item_id", Value: d.ApprovedQty,
				Message: fmt.Sprintf("item %d is not part of this request", d.ItemID)})
			continue
		case decided[d.ItemID]:
			violations = append(violations, Models.Violation{ItemID: d.ItemID, SpareID: item.SpareID, Field: "item_id",
				Message: fmt.Sprintf("item %d decided more than once", d.ItemID)})
			continue
		}
		decided[d.ItemID] = true

		limit := item.MaxApprovable()
		switch {
		case d.ApprovedQty < 0:
			violations = append(violations, Models.Violation{ItemID: item.ID, SpareID: item.SpareID, Field: "approved_qty",
				Value: d.ApprovedQty, Message: fmt.Sprintf("approved quantity for spare %d cannot be negative", item.SpareID)})
		case d.ApprovedQty > limit:
			violations = append(violations, Models.Violation{ItemID: item.ID, SpareID: item.SpareID, Field: "approved_qty",
				Value: d.ApprovedQty, Limit: limit,
				Message: fmt.Sprintf("approved quantity %d for spare %d exceeds %d (requested %d, available %d)",
					d.ApprovedQty, item.SpareID, limit, item.RequestedQty, item.AvailableQtyAtSource)})
		default:
			approved[item.ID] = d.ApprovedQty
		}
	}

	if len(violations) > 0 {
		return nil, &Models.ValidationError{Field: "items", Message: "approval exceeds allowed quantities", Violations: violations}
	}
	return approved, nil
}
