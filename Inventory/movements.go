package Inventory

import (
	"encoding/json"
	"fmt"
	"time"

	"SpareLink/Models"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Line is one spare quantity carried by a movement.
type Line struct {
	SpareID         uint
	Qty             int
	Condition       Models.Condition
	SourceCondition Models.Condition
}

// MovementInput describes a movement to record. Source or Destination may be
// nil for a pure adjustment, not both.
type MovementInput struct {
	Type          Models.MovementType
	Source        *Models.Location
	Destination   *Models.Location
	ReferenceType string
	ReferenceID   uint
	CreatedBy     uint
	Notes         string
	Metadata      map[string]any
	Lines         []Line
}

// MovementLog is the only writer of the inventory ledger. Every quantity
// change is explained by exactly one movement created in the same transaction.
type MovementLog struct {
	Now func() time.Time
}

func NewMovementLog() *MovementLog {
	return &MovementLog{Now: time.Now}
}

// Record inserts the movement and its items, applies the ledger effects and
// marks it completed. tx must be an open transaction; on any error the caller
// rolls back and neither the movement nor its ledger effects survive.
func (m *MovementLog) Record(tx *gorm.DB, in MovementInput) (*Models.StockMovement, error) {
	items, total, err := normalizeLines(in)
	if err != nil {
		return nil, err
	}

	movement := Models.StockMovement{
		MovementNo:    uuid.NewString(),
		Type:          in.Type,
		TotalQty:      total,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Status:        Models.MovementCreated,
		CreatedBy:     in.CreatedBy,
		Notes:         in.Notes,
		CreatedAt:     m.Now(),
		Items:         items,
	}
	if in.Source != nil {
		movement.SourceType, movement.SourceID = in.Source.Type, in.Source.ID
	}
	if in.Destination != nil {
		movement.DestinationType, movement.DestinationID = in.Destination.Type, in.Destination.ID
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode movement metadata: %w", err)
		}
		movement.Metadata = datatypes.JSON(raw)
	}

	if err := tx.Create(&movement).Error; err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}

	for _, item := range movement.Items {
		if in.Source != nil {
			good, defective := bucketDelta(item.SourceCondition, -item.Qty)
			if _, err := adjust(tx, item.SpareID, *in.Source, good, defective); err != nil {
				return nil, err
			}
		}
		if in.Destination != nil {
			good, defective := bucketDelta(item.Condition, item.Qty)
			if _, err := adjust(tx, item.SpareID, *in.Destination, good, defective); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Model(&movement).Update("status", Models.MovementCompleted).Error; err != nil {
		return nil, fmt.Errorf("complete movement: %w", err)
	}
	movement.Status = Models.MovementCompleted
	return &movement, nil
}

type lineKey struct {
	spareID         uint
	condition       Models.Condition
	sourceCondition Models.Condition
}

// normalizeLines validates the input and folds lines into one item per
// (spare, condition) pair, ordered by spare id so concurrent movements lock
// ledger rows in the same order.
func normalizeLines(in MovementInput) ([]Models.MovementItem, int, error) {
	if !in.Type.Valid() {
		return nil, 0, Models.Invalid("type", "unknown movement type %q", in.Type)
	}
	if in.Source == nil && in.Destination == nil {
		return nil, 0, Models.Invalid("location", "movement needs a source or a destination")
	}
	if in.Source != nil && !in.Source.Valid() {
		return nil, 0, Models.Invalid("source", "invalid location %s", *in.Source)
	}
	if in.Destination != nil && !in.Destination.Valid() {
		return nil, 0, Models.Invalid("destination", "invalid location %s", *in.Destination)
	}
	if in.ReferenceType == "" || in.ReferenceID == 0 {
		return nil, 0, Models.Invalid("reference", "movement must reference the event that caused it")
	}
	if len(in.Lines) == 0 {
		return nil, 0, Models.Invalid("items", "movement has no items")
	}

	merged := make(map[lineKey]int, len(in.Lines))
	order := make([]lineKey, 0, len(in.Lines))
	for i, line := range in.Lines {
		if line.SpareID == 0 {
			return nil, 0, Models.Invalid(fmt.Sprintf("items[%d].spare_id", i), "spare id is required")
		}
		if line.Qty <= 0 {
			return nil, 0, Models.Invalid(fmt.Sprintf("items[%d].qty", i), "quantity must be positive, got %d", line.Qty)
		}
		if line.Condition == "" {
			line.Condition = Models.ConditionGood
		}
		if line.SourceCondition == "" {
			line.SourceCondition = Models.ConditionGood
		}
		if !line.Condition.Valid() || !line.SourceCondition.Valid() {
			return nil, 0, Models.Invalid(fmt.Sprintf("items[%d].condition", i), "unknown condition")
		}
		key := lineKey{line.SpareID, line.Condition, line.SourceCondition}
		if _, seen := merged[key]; !seen {
			order = append(order, key)
		}
		merged[key] += line.Qty
	}

	slices.SortStableFunc(order, func(a, b lineKey) int {
		switch {
		case a.spareID < b.spareID:
			return -1
		case a.spareID > b.spareID:
			return 1
		}
		return 0
	})

	items := make([]Models.MovementItem, 0, len(order))
	total := 0
	for _, key := range order {
		qty := merged[key]
		total += qty
		items = append(items, Models.MovementItem{
			SpareID:         key.spareID,
			Qty:             qty,
			Condition:       key.condition,
			SourceCondition: key.sourceCondition,
		})
	}
	return items, total, nil
}
