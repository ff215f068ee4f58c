// Package Returns runs the upstream return flow. A holder sends defective or
// unused parts to a higher tier, the receiver acknowledges receipt and then
// verifies, and only verification moves stock.
package Returns

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
	Now       func() time.Time
}

func NewService(db *gorm.DB, movements *Inventory.MovementLog) *Service {
	return &Service{
		DB:        db,
		Movements: movements,
		Spares:    Models.TableSpareCatalog{},
		Now:       time.Now,
	}
}

type ItemInput struct {
	SpareID      uint
	ItemType     Models.ReturnItemType
	Qty          int
	DefectReason string
}

type SubmitInput struct {
	Receiver Models.Location
	Notes    string
	Items    []ItemInput
}

// ItemQty is a counted quantity for one return item.
type ItemQty struct {
	ItemID uint
	Qty    int
}

type Filter struct {
	Status   Models.ReturnStatus
	Holder   *Models.Location
	Receiver *Models.Location
	Limit    int
}

func (s *Service) Submit(p Models.Principal, in SubmitInput) (*Models.ReturnRequest, error) {
	holder := p.Location
	if !holder.Valid() {
		return nil, Models.Invalid("holder", "principal has no stock location")
	}
	if !in.Receiver.Valid() {
		return nil, Models.Invalid("receiver", "invalid location %s", in.Receiver)
	}
	if in.Receiver.Type.Tier() <= holder.Type.Tier() {
		return nil, Models.Invalid("receiver", "%s cannot return stock to %s", holder, in.Receiver)
	}
	if len(in.Items) == 0 {
		return nil, Models.Invalid("items", "return has no items")
	}

	type itemKey struct {
		spareID  uint
		itemType Models.ReturnItemType
	}
	var violations []Models.Violation
	seen := make(map[itemKey]bool, len(in.Items))
	for i, item := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.SpareID == 0 {
			violations = append(violations, Models.Violation{Field: field + ".spare_id", Message: "spare id is required"})
		}
		if !item.ItemType.Valid() {
			violations = append(violations, Models.Violation{SpareID: item.SpareID, Field: field + ".item_type",
				Message: fmt.Sprintf("item type must be defective or unused, got %q", item.ItemType)})
		}
		if item.Qty <= 0 {
			violations = append(violations, Models.Violation{SpareID: item.SpareID, Field: field + ".requested_qty",
				Value: item.Qty, Message: fmt.Sprintf("requested quantity must be positive, got %d", item.Qty)})
		}
		key := itemKey{item.SpareID, item.ItemType}
		if seen[key] {
			violations = append(violations, Models.Violation{SpareID: item.SpareID, Field: field,
				Message: fmt.Sprintf("spare %d listed twice as %s", item.SpareID, item.ItemType)})
		}
		seen[key] = true
	}
	if len(violations) > 0 {
		return nil, &Models.ValidationError{Field: "items", Message: "invalid return", Violations: violations}
	}

	ret := Models.ReturnRequest{
		HolderType:   holder.Type,
		HolderID:     holder.ID,
		ReceiverType: in.Receiver.Type,
		ReceiverID:   in.Receiver.ID,
		Status:       Models.ReturnSubmitted,
		Notes:        in.Notes,
		CreatedBy:    p.UserID,
	}
	for i, item := range in.Items {
		ret.Items = append(ret.Items, Models.ReturnItem{
			SpareID:      item.SpareID,
			ItemType:     item.ItemType,
			RequestedQty: item.Qty,
			DefectReason: item.DefectReason,
			ItemOrder:    i,
		})
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, item := range ret.Items {
			if _, err := s.Spares.Lookup(tx, item.SpareID); err != nil {
				return err
			}
		}
		if err := tx.Create(&ret).Error; err != nil {
			return fmt.Errorf("create return request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Return %d submitted by %s to %s (%d items)", ret.ID, holder, in.Receiver, len(ret.Items))
	return &ret, nil
}

// Receive acknowledges the parcel. Counts are recorded, stock does not move.
func (s *Service) Receive(p Models.Principal, returnID uint, counts []ItemQty) (*Models.ReturnRequest, error) {
	var ret Models.ReturnRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, returnID, "receive", Models.ReturnSubmitted)
		if err != nil {
			return err
		}
		if !p.Manages(ret.Receiver()) {
			return &Models.PermissionError{Action: "receive returns", Location: ret.Receiver()}
		}

		received, err := checkCounts(ret.Items, counts, "received_qty", func(item Models.ReturnItem) int {
			return item.RequestedQty
		})
		if err != nil {
			return err
		}

		now := s.Now()
		if err := transition(tx, returnID, []Models.ReturnStatus{Models.ReturnSubmitted}, map[string]any{
			"status":      Models.ReturnReceived,
			"received_by": p.UserID,
			"received_at": now,
		}); err != nil {
			return err
		}
		for i := range ret.Items {
			item := &ret.Items[i]
			item.ReceivedQty = received[item.ID]
			if err := tx.Model(item).Update("received_qty", item.ReceivedQty).Error; err != nil {
				return fmt.Errorf("update received quantity: %w", err)
			}
		}

		ret.Status = Models.ReturnReceived
		ret.ReceivedBy = &p.UserID
		ret.ReceivedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Return %d received by %s", returnID, p.Name)
	return &ret, nil
}

// Verify finalizes a received return and records one RETURN_TRANSFER taking
// the verified quantities from the holder's good stock. Defective items land
// in the receiver's defective bucket, unused ones in its good bucket.
func (s *Service) Verify(p Models.Principal, returnID uint, counts []ItemQty) (*Models.ReturnRequest, error) {
	var ret Models.ReturnRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, returnID, "verify", Models.ReturnReceived)
		if err != nil {
			return err
		}
		if !p.Manages(ret.Receiver()) {
			return &Models.PermissionError{Action: "verify returns", Location: ret.Receiver()}
		}

		verified, err := checkCounts(ret.Items, counts, "verified_qty", func(item Models.ReturnItem) int {
			return item.ReceivedQty
		})
		if err != nil {
			return err
		}

		now := s.Now()
		if err := transition(tx, returnID, []Models.ReturnStatus{Models.ReturnReceived}, map[string]any{
			"status":      Models.ReturnVerified,
			"verified_by": p.UserID,
			"verified_at": now,
		}); err != nil {
			return err
		}

		var lines []Inventory.Line
		for i := range ret.Items {
			item := &ret.Items[i]
			item.VerifiedQty = verified[item.ID]
			if err := tx.Model(item).Update("verified_qty", item.VerifiedQty).Error; err != nil {
				return fmt.Errorf("update verified quantity: %w", err)
			}
			if item.VerifiedQty > 0 {
				lines = append(lines, Inventory.Line{
					SpareID:         item.SpareID,
					Qty:             item.VerifiedQty,
					Condition:       item.ItemType.DestinationCondition(),
					SourceCondition: Models.ConditionGood,
				})
			}
		}

		if len(lines) > 0 {
			source, destination := ret.Holder(), ret.Receiver()
			if _, err := s.Movements.Record(tx, Inventory.MovementInput{
				Type:          Models.MovementReturnTransfer,
				Source:        &source,
				Destination:   &destination,
				ReferenceType: Models.ReferenceReturnRequest,
				ReferenceID:   ret.ID,
				CreatedBy:     p.UserID,
				Metadata:      map[string]any{"verified_by": p.Name},
				Lines:         lines,
			}); err != nil {
				return err
			}
		}

		ret.Status = Models.ReturnVerified
		ret.VerifiedBy = &p.UserID
		ret.VerifiedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Return %d verified by %s", returnID, p.Name)
	return &ret, nil
}

// Reject ends a return before verification. Either side may reject.
func (s *Service) Reject(p Models.Principal, returnID uint, reason string) (*Models.ReturnRequest, error) {
	if reason == "" {
		return nil, Models.Invalid("reason", "rejection reason is required")
	}

	var ret Models.ReturnRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		ret, err = lockReturn(tx, returnID, "reject", Models.ReturnSubmitted, Models.ReturnReceived)
		if err != nil {
			return err
		}
		if !p.Manages(ret.Receiver()) && !p.Manages(ret.Holder()) {
			return &Models.PermissionError{Action: "reject returns", Location: ret.Receiver()}
		}

		if err := transition(tx, returnID, []Models.ReturnStatus{Models.ReturnSubmitted, Models.ReturnReceived}, map[string]any{
			"status":           Models.ReturnRejected,
			"rejection_reason": reason,
		}); err != nil {
			return err
		}
		ret.Status = Models.ReturnRejected
		ret.RejectionReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Return %d rejected by %s: %s", returnID, p.Name, reason)
	return &ret, nil
}

func (s *Service) Get(returnID uint) (*Models.ReturnRequest, error) {
	var ret Models.ReturnRequest
	err := s.DB.Preload("Items", orderItems).First(&ret, returnID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Models.NotFoundError{Entity: "return request", ID: returnID}
	}
	if err != nil {
		return nil, fmt.Errorf("get return request: %w", err)
	}
	return &ret, nil
}

func (s *Service) List(f Filter) ([]Models.ReturnRequest, error) {
	query := s.DB.Model(&Models.ReturnRequest{}).Preload("Items", orderItems)
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Holder != nil {
		query = query.Where("holder_type = ? AND holder_id = ?", f.Holder.Type, f.Holder.ID)
	}
	if f.Receiver != nil {
		query = query.Where("receiver_type = ? AND receiver_id = ?", f.Receiver.Type, f.Receiver.ID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var returns []Models.ReturnRequest
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&returns).Error; err != nil {
		return nil, fmt.Errorf("list return requests: %w", err)
	}
	return returns, nil
}

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("item_order ASC")
}

func lockReturn(tx *gorm.DB, returnID uint, action string, allowed ...Models.ReturnStatus) (Models.ReturnRequest, error) {
	var ret Models.ReturnRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", orderItems).
		First(&ret, returnID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ret, &Models.NotFoundError{Entity: "return request", ID: returnID}
	}
	if err != nil {
		return ret, fmt.Errorf("load return request: %w", err)
	}
	for _, status := range allowed {
		if ret.Status == status {
			return ret, nil
		}
	}
	return ret, &Models.InvalidStateError{Entity: "return request", ID: returnID, State: string(ret.Status), Action: action}
}

func transition(tx *gorm.DB, returnID uint, from []Models.ReturnStatus, fields map[string]any) error {
	res := tx.Model(&Models.ReturnRequest{}).
		Where("id = ? AND status IN ?", returnID, from).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update return request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &Models.InvalidStateError{Entity: "return request", ID: returnID, State: "changed", Action: fmt.Sprint(fields["status"])}
	}
	return nil
}

// checkCounts validates per-item counts against an upper bound taken from
// each item. Items without a count get zero.
func checkCounts(items []Models.ReturnItem, counts []ItemQty, field string, bound func(Models.ReturnItem) int) (map[uint]int, error) {
	byID := make(map[uint]Models.ReturnItem, len(items))
	result := make(map[uint]int, len(items))
	for _, item := range items {
		byID[item.ID] = item
		result[item.ID] = 0
	}

	var violations []Models.Violation
	counted := make(map[uint]bool, len(counts))
	for _, c := range counts {
		item, ok := byID[c.ItemID]
		if !ok {
			violations = append(violations, Models.Violation{ItemID: c.ItemID, Field: "item_id", Value: c.Qty,
				Message: fmt.Sprintf("item %d is not part of this return", c.ItemID)})
			continue
		}
		if counted[c.ItemID] {
			violations = append(violations, Models.Violation{ItemID: c.ItemID, SpareID: item.SpareID, Field: "item_id",
				Message: fmt.Sprintf("item %d counted more than once", c.ItemID)})
			continue
		}
		counted[c.ItemID] = true

		limit := bound(item)
		switch {
		case c.Qty < 0:
			violations = append(violations, Models.Violation{ItemID: item.ID, SpareID: item.SpareID, Field: field,
				Value: c.Qty, Message: fmt.Sprintf("%s for spare %d cannot be negative", field, item.SpareID)})
		case c.Qty > limit:
			violations = append(violations, Models.Violation{ItemID: item.ID, SpareID: item.SpareID, Field: field,
				Value: c.Qty, Limit: limit,
				Message: fmt.Sprintf("%s %d for spare %d exceeds %d", field, c.Qty, item.SpareID, limit)})
		default:
			result[item.ID] = c.Qty
		}
	}

	if len(violations) > 0 {
		return nil, &Models.ValidationError{Field: "items", Message: "invalid " + field, Violations: violations}
	}
	return result, nil
}
