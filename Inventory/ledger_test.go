package Inventory

import (
	"sync"
	"testing"

	"SpareLink/Fixtures"
	"SpareLink/Models"

	"gorm.io/gorm"
)

var (
	tech   = Models.Location{Type: Models.LocationTechnician, ID: 7}
	center = Models.Location{Type: Models.LocationServiceCenter, ID: 3}
)

func TestGetQuantities_AbsentIsZero(t *testing.T) {
	db := Fixtures.OpenDB(t)
	spare := Fixtures.Spare(t, db, "PCB-01")

	q, err := GetQuantities(db, spare.ID, tech)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if q.QtyGood != 0 || q.QtyDefective != 0 {
		t.Errorf("Expected zeros, got good=%d defective=%d", q.QtyGood, q.QtyDefective)
	}
}

func TestGetQuantities_InvalidLocation(t *testing.T) {
	db := Fixtures.OpenDB(t)

	_, err := GetQuantities(db, 1, Models.Location{Type: "warehouse", ID: 1})
	if !Models.IsValidation(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestListQuantities(t *testing.T) {
	db := Fixtures.OpenDB(t)
	a := Fixtures.Spare(t, db, "A")
	b := Fixtures.Spare(t, db, "B")
	Fixtures.Stock(t, db, b.ID, tech, 1, 2)
	Fixtures.Stock(t, db, a.ID, tech, 3, 0)
	Fixtures.Stock(t, db, a.ID, center, 9, 9)

	rows, err := ListQuantities(db, tech)
	if err != nil {
		t.Fatalf("ListQuantities failed: %v", err)
	}
	if len(rows) != 2 || rows[0].SpareID != a.ID || rows[1].QtyDefective != 2 {
		t.Errorf("Unexpected rows %+v", rows)
	}
}

func TestAdjust_NeverNegative(t *testing.T) {
	db := Fixtures.OpenDB(t)
	spare := Fixtures.Spare(t, db, "MOTOR-02")

	steps := []struct {
		name           string
		deltaGood      int
		deltaDefective int
		wantErr        bool
		wantGood       int
		wantDefective  int
	}{
		{"receive_good", 5, 0, false, 5, 0},
		{"mark_two_defective", -2, 2, false, 3, 2},
		{"overdraw_good", -4, 0, true, 3, 2},
		{"overdraw_defective", 0, -3, true, 3, 2},
		{"partial_overdraw_rejected_whole", -1, -5, true, 3, 2},
		{"drain_exactly", -3, -2, false, 0, 0},
		{"decrement_empty", -1, 0, true, 0, 0},
	}

	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			err := db.Transaction(func(tx *gorm.DB) error {
				_, err := adjust(tx, spare.ID, tech, step.deltaGood, step.deltaDefective)
				return err
			})
			if step.wantErr {
				if !Models.IsInsufficientStock(err) {
					t.Fatalf("Expected InsufficientStockError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			good, defective := Fixtures.Quantities(t, db, spare.ID, tech)
			if good != step.wantGood || defective != step.wantDefective {
				t.Errorf("Expected good=%d defective=%d, got good=%d defective=%d",
					step.wantGood, step.wantDefective, good, defective)
			}
			if good < 0 || defective < 0 {
				t.Fatalf("Ledger went negative: good=%d defective=%d", good, defective)
			}
		})
	}
}

func TestAdjust_InsufficientStockContext(t *testing.T) {
	db := Fixtures.OpenDB(t)
	spare := Fixtures.Spare(t, db, "FAN-03")
	Fixtures.Stock(t, db, spare.ID, center, 2, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := adjust(tx, spare.ID, center, -5, 0)
		return err
	})

	stockErr, ok := err.(*Models.InsufficientStockError)
	if !ok {
		t.Fatalf("Expected *InsufficientStockError, got %T: %v", err, err)
	}
	if stockErr.Available != 2 || stockErr.Requested != 5 || stockErr.SpareID != spare.ID {
		t.Errorf("Unexpected error context: %+v", stockErr)
	}
	if stockErr.Condition != Models.ConditionGood {
		t.Errorf("Expected good bucket, got %s", stockErr.Condition)
	}
}

func TestAdjust_ReportsDefectiveShortfall(t *testing.T) {
	db := Fixtures.OpenDB(t)
	spare := Fixtures.Spare(t, db, "PUMP-05")
	Fixtures.Stock(t, db, spare.ID, center, 5, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := adjust(tx, spare.ID, center, -2, -3)
		return err
	})

	stockErr, ok := err.(*Models.InsufficientStockError)
	if !ok {
		t.Fatalf("Expected *InsufficientStockError, got %T: %v", err, err)
	}
	if stockErr.Condition != Models.ConditionDefective || stockErr.Available != 1 || stockErr.Requested != 3 {
		t.Errorf("Unexpected error context: %+v", stockErr)
	}
	if good, defective := Fixtures.Quantities(t, db, spare.ID, center); good != 5 || defective != 1 {
		t.Errorf("Expected row untouched, got good=%d defective=%d", good, defective)
	}
}

func TestShortfall(t *testing.T) {
	tests := []struct {
		name           string
		good, def      int
		deltaGood      int
		deltaDefective int
		wantCondition  Models.Condition
		wantAvailable  int
		wantRequested  int
	}{
		{"enough", 3, 3, -3, -3, "", 0, 0},
		{"good_short", 1, 0, -2, 0, Models.ConditionGood, 1, 2},
		{"defective_short_with_good_decrement", 4, 0, -1, -2, Models.ConditionDefective, 0, 2},
		{"good_reported_first", 0, 0, -1, -1, Models.ConditionGood, 0, 1},
		{"conversion_short", 0, 9, -1, 1, Models.ConditionGood, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Models.InventoryRecord{SpareID: 11, QtyGood: tt.good, QtyDefective: tt.def}
			err := shortfall(rec, center, tt.deltaGood, tt.deltaDefective)
			if tt.wantCondition == "" {
				if err != nil {
					t.Fatalf("Expected no shortfall, got %v", err)
				}
				return
			}
			stockErr, ok := err.(*Models.InsufficientStockError)
			if !ok {
				t.Fatalf("Expected *InsufficientStockError, got %T: %v", err, err)
			}
			if stockErr.SpareID != 11 || stockErr.Condition != tt.wantCondition ||
				stockErr.Available != tt.wantAvailable || stockErr.Requested != tt.wantRequested {
				t.Errorf("Unexpected error context: %+v", stockErr)
			}
		})
	}
}

func TestAdjust_ConcurrentDecrementsSerialize(t *testing.T) {
	db := Fixtures.OpenDB(t)
	spare := Fixtures.Spare(t, db, "VALVE-04")
	Fixtures.Stock(t, db, spare.ID, center, 5, 0)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				_, err := adjust(tx, spare.ID, center, -1, 0)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Errorf("Expected 5 successful decrements, got %d", succeeded)
	}
	good, _ := Fixtures.Quantities(t, db, spare.ID, center)
	if good != 0 {
		t.Errorf("Expected good=0, got %d", good)
	}
}
