package Models

import "time"

// InventoryRecord is one ledger row. A missing row reads as zero stock.
type InventoryRecord struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	SpareID      uint         `json:"spare_id" gorm:"not null;uniqueIndex:idx_inventory_key,priority:1"`
	LocationType LocationType `json:"location_type" gorm:"type:varchar(20);not null;uniqueIndex:idx_inventory_key,priority:2"`
	LocationID   uint         `json:"location_id" gorm:"not null;uniqueIndex:idx_inventory_key,priority:3"`
	QtyGood      int          `json:"qty_good" gorm:"not null;default:0"`
	QtyDefective int          `json:"qty_defective" gorm:"not null;default:0"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (r InventoryRecord) Location() Location {
	return Location{Type: r.LocationType, ID: r.LocationID}
}

// Quantities is the read model returned for a (spare, location) pair.
type Quantities struct {
	SpareID      uint     `json:"spare_id"`
	Location     Location `json:"location"`
	QtyGood      int      `json:"qty_good"`
	QtyDefective int      `json:"qty_defective"`
}

func (q Quantities) Bucket(c Condition) int {
	if c == ConditionDefective {
		return q.QtyDefective
	}
	return q.QtyGood
}
