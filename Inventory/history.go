package Inventory

import (
	"fmt"

	"SpareLink/Models"

	"gorm.io/gorm"
)

type HistoryFilter struct {
	Location      *Models.Location
	ReferenceType string
	ReferenceID   uint
	Type          Models.MovementType
	Limit         int
}

// History lists movements touching a location or caused by one reference,
// newest first, with their items.
func History(db *gorm.DB, f HistoryFilter) ([]Models.StockMovement, error) {
	query := db.Model(&Models.StockMovement{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		})

	if f.Location != nil {
		if !f.Location.Valid() {
			return nil, Models.Invalid("location", "invalid location %s", *f.Location)
		}
		query = query.Where(
			"(source_type = ? AND source_id = ?) OR (destination_type = ? AND destination_id = ?)",
			f.Location.Type, f.Location.ID, f.Location.Type, f.Location.ID,
		)
	}
	if f.ReferenceType != "" {
		query = query.Where("reference_type = ?", f.ReferenceType)
	}
	if f.ReferenceID != 0 {
		query = query.Where("reference_id = ?", f.ReferenceID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var movements []Models.StockMovement
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("movement history: %w", err)
	}
	return movements, nil
}
