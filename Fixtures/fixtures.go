// Package Fixtures builds in-memory databases and seed rows for tests.
package Fixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"SpareLink/Models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// OpenDB returns a migrated private in-memory sqlite database.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := Models.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func Spare(t testing.TB, db *gorm.DB, code string) Models.SparePart {
	t.Helper()
	spare := Models.SparePart{Code: code, Description: code + " assembly", Brand: "Generic"}
	if err := db.Create(&spare).Error; err != nil {
		t.Fatalf("Failed to create spare %s: %v", code, err)
	}
	return spare
}

func Call(t testing.TB, db *gorm.DB, technicianID, serviceCenterID uint) Models.ServiceCall {
	t.Helper()
	call := Models.ServiceCall{AssignedTechnicianID: technicianID, ServiceCenterID: serviceCenterID, Status: Models.CallOpen}
	if err := db.Create(&call).Error; err != nil {
		t.Fatalf("Failed to create call: %v", err)
	}
	return call
}

// Stock writes a ledger row directly. Only fixtures may do this.
func Stock(t testing.TB, db *gorm.DB, spareID uint, loc Models.Location, good, defective int) {
	t.Helper()
	rec := Models.InventoryRecord{
		SpareID:      spareID,
		LocationType: loc.Type,
		LocationID:   loc.ID,
		QtyGood:      good,
		QtyDefective: defective,
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("Failed to seed stock: %v", err)
	}
}

func Quantities(t testing.TB, db *gorm.DB, spareID uint, loc Models.Location) (good, defective int) {
	t.Helper()
	var rec Models.InventoryRecord
	err := db.Where("spare_id = ? AND location_type = ? AND location_id = ?", spareID, loc.Type, loc.ID).
		Limit(1).Find(&rec).Error
	if err != nil {
		t.Fatalf("Failed to read stock: %v", err)
	}
	return rec.QtyGood, rec.QtyDefective
}

func CountMovements(t testing.TB, db *gorm.DB, referenceType string, referenceID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&Models.StockMovement{}).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Count(&n).Error; err != nil {
		t.Fatalf("Failed to count movements: %v", err)
	}
	return n
}

func Technician(id uint) Models.Principal {
	return Models.Principal{
		UserID:   100 + id,
		Name:     fmt.Sprintf("tech-%d", id),
		Role:     Models.RoleTechnician,
		Location: Models.Location{Type: Models.LocationTechnician, ID: id},
	}
}

func ServiceCenter(id uint) Models.Principal {
	return Models.Principal{
		UserID:   200 + id,
		Name:     fmt.Sprintf("sc-%d", id),
		Role:     Models.RoleServiceCenter,
		Location: Models.Location{Type: Models.LocationServiceCenter, ID: id},
	}
}

func RSM(branchID uint) Models.Principal {
	return Models.Principal{
		UserID:   300 + branchID,
		Name:     fmt.Sprintf("rsm-%d", branchID),
		Role:     Models.RoleRSM,
		Location: Models.Location{Type: Models.LocationBranch, ID: branchID},
	}
}

// Clock is a settable time source for services under test.
type Clock struct {
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
