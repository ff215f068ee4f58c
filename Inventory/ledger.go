package Inventory

import (
	"errors"
	"fmt"

	"SpareLink/Models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetQuantities returns the current buckets for a spare at a location. A
// location that never held the spare reads as zeros.
func GetQuantities(db *gorm.DB, spareID uint, loc Models.Location) (Models.Quantities, error) {
	q := Models.Quantities{SpareID: spareID, Location: loc}
	if !loc.Valid() {
		return q, Models.Invalid("location", "invalid location %s", loc)
	}

	var rec Models.InventoryRecord
	err := db.Where("spare_id = ? AND location_type = ? AND location_id = ?", spareID, loc.Type, loc.ID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return q, nil
	}
	if err != nil {
		return q, fmt.Errorf("read inventory: %w", err)
	}
	q.QtyGood = rec.QtyGood
	q.QtyDefective = rec.QtyDefective
	return q, nil
}

// ListQuantities returns every ledger row held at a location.
func ListQuantities(db *gorm.DB, loc Models.Location) ([]Models.InventoryRecord, error) {
	var rows []Models.InventoryRecord
	err := db.Where("location_type = ? AND location_id = ?", loc.Type, loc.ID).
		Order("spare_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return rows, nil
}

// lockRecord makes sure the ledger row exists and takes a row lock on it for
// the rest of the transaction.
func lockRecord(tx *gorm.DB, spareID uint, loc Models.Location) (Models.InventoryRecord, error) {
	seed := Models.InventoryRecord{SpareID: spareID, LocationType: loc.Type, LocationID: loc.ID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return seed, fmt.Errorf("ensure inventory row: %w", err)
	}

	var rec Models.InventoryRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("spare_id = ? AND location_type = ? AND location_id = ?", spareID, loc.Type, loc.ID).
		First(&rec).Error
	if err != nil {
		return rec, fmt.Errorf("lock inventory row: %w", err)
	}
	return rec, nil
}

// adjust applies signed deltas to both buckets of one ledger row. It must run
// inside the transaction that records the explaining movement, which is why
// only the movement log calls it. A result below zero fails with
// InsufficientStockError and nothing is written.
func adjust(tx *gorm.DB, spareID uint, loc Models.Location, deltaGood, deltaDefective int) (Models.InventoryRecord, error) {
	rec, err := lockRecord(tx, spareID, loc)
	if err != nil {
		return rec, err
	}
	if deltaGood == 0 && deltaDefective == 0 {
		return rec, nil
	}

	if err := shortfall(rec, loc, deltaGood, deltaDefective); err != nil {
		return rec, err
	}

	// the guard repeats the check for databases without row locks
	res := tx.Model(&Models.InventoryRecord{}).
		Where("id = ? AND qty_good + ? >= 0 AND qty_defective + ? >= 0", rec.ID, deltaGood, deltaDefective).
		Updates(map[string]any{
			"qty_good":      gorm.Expr("qty_good + ?", deltaGood),
			"qty_defective": gorm.Expr("qty_defective + ?", deltaDefective),
		})
	if res.Error != nil {
		return rec, fmt.Errorf("update inventory: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// another writer got there first, report what the row holds now
		var current Models.InventoryRecord
		if err := tx.First(&current, rec.ID).Error; err != nil {
			return rec, fmt.Errorf("reload inventory row: %w", err)
		}
		if err := shortfall(current, loc, deltaGood, deltaDefective); err != nil {
			return current, err
		}
		return current, fmt.Errorf("update inventory: row %d not updated", rec.ID)
	}

	rec.QtyGood += deltaGood
	rec.QtyDefective += deltaDefective
	return rec, nil
}

// shortfall reports the first bucket of rec that the deltas would take below
// zero, good before defective.
func shortfall(rec Models.InventoryRecord, loc Models.Location, deltaGood, deltaDefective int) error {
	if rec.QtyGood+deltaGood < 0 {
		return &Models.InsufficientStockError{
			SpareID: rec.SpareID, Location: loc, Condition: Models.ConditionGood,
			Available: rec.QtyGood, Requested: -deltaGood,
		}
	}
	if rec.QtyDefective+deltaDefective < 0 {
		return &Models.InsufficientStockError{
			SpareID: rec.SpareID, Location: loc, Condition: Models.ConditionDefective,
			Available: rec.QtyDefective, Requested: -deltaDefective,
		}
	}
	return nil
}

func bucketDelta(c Models.Condition, qty int) (good, defective int) {
	if c == Models.ConditionDefective {
		return 0, qty
	}
	return qty, 0
}
