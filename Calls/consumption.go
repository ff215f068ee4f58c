package Calls

import (
	"errors"
	"fmt"
	"log"

	"SpareLink/Inventory"
	"SpareLink/Models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	IssuedFromApproval = "approval"
	IssuedFromManual   = "manual"
)

// ConsumptionInput reports what happened to a spare issued for a call.
// ReturnedQty nil keeps the previously reported value. IssuedQty is only used
// when no approved request exists for the call and spare.
type ConsumptionInput struct {
	CallID      uint
	SpareID     uint
	UsedQty     int
	ReturnedQty *int
	IssuedQty   *int
}

// RecordConsumption upserts the usage row of (call, spare) and converts any
// newly used quantity from good to defective in the technician's stock.
func (s *Service) RecordConsumption(p Models.Principal, in ConsumptionInput) (*Models.CallSpareUsage, error) {
	if in.CallID == 0 || in.SpareID == 0 {
		return nil, Models.Invalid("call_id", "call id and spare id are required")
	}
	if in.UsedQty < 0 {
		return nil, Models.Invalid("used_qty", "used quantity cannot be negative, got %d", in.UsedQty)
	}
	if in.ReturnedQty != nil && *in.ReturnedQty < 0 {
		return nil, Models.Invalid("returned_qty", "returned quantity cannot be negative, got %d", *in.ReturnedQty)
	}

	var usage Models.CallSpareUsage
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		call, err := s.assignment(tx, p, in.CallID, "record consumption")
		if err != nil {
			return err
		}
		if err := requireOpen(call, "record consumption for"); err != nil {
			return err
		}
		if _, err := s.Spares.Lookup(tx, in.SpareID); err != nil {
			return err
		}

		issued, source, err := s.issuedQty(tx, in)
		if err != nil {
			return err
		}

		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("call_id = ? AND spare_id = ?", in.CallID, in.SpareID).
			First(&usage).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load usage: %w", err)
		}

		returned := usage.ReturnedQty
		if in.ReturnedQty != nil {
			returned = *in.ReturnedQty
		}

		var violations []Models.Violation
		if in.UsedQty > issued {
			violations = append(violations, Models.Violation{SpareID: in.SpareID, Field: "used_qty", Value: in.UsedQty, Limit: issued,
				Message: fmt.Sprintf("used quantity %d exceeds issued %d", in.UsedQty, issued)})
		}
		if in.UsedQty+returned > issued {
			violations = append(violations, Models.Violation{SpareID: in.SpareID, Field: "returned_qty", Value: in.UsedQty + returned, Limit: issued,
				Message: fmt.Sprintf("used %d plus returned %d exceeds issued %d", in.UsedQty, returned, issued)})
		}
		if in.UsedQty < usage.AppliedQty {
			violations = append(violations, Models.Violation{SpareID: in.SpareID, Field: "used_qty", Value: in.UsedQty, Limit: usage.AppliedQty,
				Message: fmt.Sprintf("used quantity cannot drop below %d already marked defective", usage.AppliedQty)})
		}
		if len(violations) > 0 {
			return &Models.ValidationError{Field: "used_qty", Message: "invalid consumption", Violations: violations}
		}

		pending := in.UsedQty - usage.AppliedQty
		usage.CallID = in.CallID
		usage.SpareID = in.SpareID
		usage.TechnicianID = call.TechnicianID
		usage.IssuedQty = issued
		usage.UsedQty = in.UsedQty
		usage.ReturnedQty = returned
		usage.AppliedQty = in.UsedQty
		usage.UsageStatus = Models.ComputeUsageStatus(issued, in.UsedQty)
		usage.IssuedFrom = source
		if err := tx.Save(&usage).Error; err != nil {
			return fmt.Errorf("save usage: %w", err)
		}

		if pending > 0 {
			technician := call.Technician()
			_, err := s.Movements.Record(tx, Inventory.MovementInput{
				Type:          Models.MovementDefectiveMarking,
				Source:        &technician,
				Destination:   &technician,
				ReferenceType: Models.ReferenceCall,
				ReferenceID:   in.CallID,
				CreatedBy:     p.UserID,
				Metadata:      map[string]any{"usage_id": usage.ID, "issued_from": source},
				Lines: []Inventory.Line{{
					SpareID:         in.SpareID,
					Qty:             pending,
					Condition:       Models.ConditionDefective,
					SourceCondition: Models.ConditionGood,
				}},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Call %d spare %d: used %d of %d (%s)", in.CallID, in.SpareID, usage.UsedQty, usage.IssuedQty, usage.UsageStatus)
	return &usage, nil
}

// issuedQty takes the approved quantity of the most recent approved request
// for the call and spare. Without one the caller must state the issued
// quantity explicitly.
func (s *Service) issuedQty(tx *gorm.DB, in ConsumptionInput) (int, string, error) {
	var items []Models.SpareRequestItem
	err := tx.Joins("JOIN spare_requests ON spare_requests.id = spare_request_items.request_id AND spare_requests.deleted_at IS NULL").
		Where("spare_requests.call_id = ? AND spare_requests.status = ? AND spare_request_items.spare_id = ?",
			in.CallID, Models.RequestApprovedByRSM, in.SpareID).
		Order("spare_requests.decided_at DESC").
		Order("spare_requests.id DESC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return 0, "", fmt.Errorf("lookup approved quantity: %w", err)
	}

	if len(items) == 1 {
		approved := items[0].ApprovedQty
		if in.IssuedQty != nil && *in.IssuedQty != approved {
			log.Printf("Call %d spare %d: ignoring issued quantity %d, approved quantity is %d",
				in.CallID, in.SpareID, *in.IssuedQty, approved)
		}
		return approved, IssuedFromApproval, nil
	}

	if in.IssuedQty == nil {
		return 0, "", Models.Invalid("issued_qty",
			"no approved request for spare %d on call %d; issued quantity must be given", in.SpareID, in.CallID)
	}
	if *in.IssuedQty < 0 {
		return 0, "", Models.Invalid("issued_qty", "issued quantity cannot be negative, got %d", *in.IssuedQty)
	}
	log.Printf("Call %d spare %d: no approved request, using stated issued quantity %d", in.CallID, in.SpareID, *in.IssuedQty)
	return *in.IssuedQty, IssuedFromManual, nil
}
