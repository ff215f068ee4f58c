package Requests

import (
	"testing"
	"time"

	"SpareLink/Fixtures"
	"SpareLink/Inventory"
	"SpareLink/Models"

	"gorm.io/gorm"
)

type env struct {
	db      *gorm.DB
	svc     *Service
	center  Models.Location
	branch  Models.Location
	tech    Models.Principal
	manager Models.Principal
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := Fixtures.OpenDB(t)
	clock := Fixtures.NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	movements := Inventory.NewMovementLog()
	movements.Now = clock.Now
	svc := NewService(db, movements)
	svc.Now = clock.Now
	return env{
		db:      db,
		svc:     svc,
		center:  Fixtures.ServiceCenter(3).Location,
		branch:  Models.Location{Type: Models.LocationBranch, ID: 1},
		tech:    Fixtures.Technician(7),
		manager: Fixtures.ServiceCenter(3),
	}
}

func TestApprove_Scenario(t *testing.T) {
	e := newEnv(t)
	spare := Fixtures.Spare(t, e.db, "S")
	Fixtures.Stock(t, e.db, spare.ID, e.center, 6, 0)

	req, err := e.svc.Submit(e.tech, SubmitInput{
		Fulfiller: e.center,
		Items:     []ItemInput{{SpareID: spare.ID, Qty: 10}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if req.Status != Models.RequestPending {
		t.Fatalf("Expected pending, got %s", req.Status)
	}
	if req.Items[0].AvailableQtyAtSource != 6 {
		t.Fatalf("Expected snapshot of 6, got %d", req.Items[0].AvailableQtyAtSource)
	}

	approved, err := e.svc.Approve(e.manager, req.ID, []Decision{{ItemID: req.Items[0].ID, ApprovedQty: 6}})
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != Models.RequestApprovedByRSM {
		t.Errorf("Expected approved_by_rsm, got %s", approved.Status)
	}

	if good, _ := Fixtures.Quantities(t, e.db, spare.ID, e.center); good != 0 {
		t.Errorf("Expected fulfiller good=0, got %d", good)
	}
	if good, _ := Fixtures.Quantities(t, e.db, spare.ID, e.tech.Location); good != 6 {
		t.Errorf("Expected requester good=6, got %d", good)
	}

	_, err = e.svc.Approve(e.manager, req.ID, []Decision{{ItemID: req.Items[0].ID, ApprovedQty: 6}})
	if !Models.IsInvalidState(err) {
		t.Fatalf("Expected InvalidStateError on second approve, got %v", err)
	}
	if _, err := e.svc.Reject(e.manager, req.ID, "late"); !Models.IsInvalidState(err) {
		t.Errorf("Expected InvalidStateError on reject after approve, got %v", err)
	}
	if n := Fixtures.CountMovements(t, e.db, Models.ReferenceSpareRequest, req.ID); n != 1 {
		t.Errorf("Expected exactly one movement, got %d", n)
	}

	stored, err := e.svc.Get(req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Items[0].ApprovedQty != 6 || stored.DecidedBy == nil || *stored.DecidedBy != e.manager.UserID {
		t.Errorf("Unexpected stored request %+v", stored)
	}
}

func TestApprove_BoundViolationsListed(t *testing.T) {
	e := newEnv(t)
	a := Fixtures.Spare(t, e.db, "A")
	b := Fixtures.Spare(t, e.db, "B")
	Fixtures.Stock(t, e.db, a.ID, e.center, 6, 0)
	Fixtures.Stock(t, e.db, b.ID, e.center, 20, 0)

	req, err := e.svc.Submit(e.tech, SubmitInput{
		Fulfiller: e.center,
		Items:     []ItemInput{{SpareID: a.ID, Qty: 10}, {SpareID: b.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	itemA, itemB := req.Items[0].ID, req.Items[1].ID

	tests := []struct {
		name       string
		decisions  []Decision
		violations int
	}{
		{"above_available", []Decision{{ItemID: itemA, ApprovedQty: 7}}, 1},
		{"above_requested", []Decision{{ItemID: itemB, ApprovedQty: 3}}, 1},
		{"both_items", []Decision{{ItemID: itemA, ApprovedQty: 8}, {ItemID: itemB, ApprovedQty: 5}}, 2},
		{"negative", []Decision{{ItemID: itemA, ApprovedQty: -1}}, 1},
		{"unknown_item", []Decision{{ItemID: 9999, ApprovedQty: 1}}, 1},
		{"duplicate", []Decision{{ItemID: itemB, ApprovedQty: 1}, {ItemID: itemB, ApprovedQty: 1}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Approve(e.manager, req.ID, tt.decisions)
			verr, ok := err.(*Models.ValidationError)
			if !ok {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if len(verr.Violations) != tt.violations {
				t.Errorf("Expected %d violations, got %d: %v", tt.violations, len(verr.Violations), verr)
			}
		})
	}

	stored, err := e.svc.Get(req.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != Models.RequestPending {
		t.Errorf("Expected request still pending, got %s", stored.Status)
	}
	if good, _ := Fixtures.Quantities(t, e.db, a.ID, e.center); good != 6 {
		t.Errorf("Expected stock untouched, got %d", good)
	}
}

func TestApprove_MissingDecisionIsZero(t *testing.T) {
	e := newEnv(t)
	a := Fixtures.Spare(t, e.db, "A")
	b := Fixtures.Spare(t, e.db, "B")
	Fixtures.Stock(t, e.db, a.ID, e.center, 5, 0)
	Fixtures.Stock(t, e.db, b.ID, e.center, 5, 0)

	req, err := e.svc.Submit(e.tech, SubmitInput{
		Fulfiller: e.center,
		Items:     []ItemInput{{SpareID: a.ID, Qty: 2}, {SpareID: b.ID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := e.svc.Approve(e.manager, req.ID, []Decision{{ItemID: req.Items[1].ID, ApprovedQty: 2}}); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if good, _ := Fixtures.Quantities(t, e.db, a.ID, e.tech.Location); good != 0 {
		t.Errorf("Expected spare A not moved, got %d", good)
	}
	if good, _ := Fixtures.Quantities(t, e.db, b.ID, e.tech.Location); good != 2 {
		t.Errorf("Expected spare B moved, got %d", good)
	}

	history, err := Inventory.History(e.db, Inventory.HistoryFilter{ReferenceType: Models.ReferenceSpareRequest, ReferenceID: req.ID})
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || len(history[0].Items) != 1 || history[0].Type != Models.MovementReplenishment {
		t.Errorf("Expected one replenishment with one item, got %+v", history)
	}
}

func TestApprove_StockDrainedSinceSnapshot(t *testing.T) {
	e := newEnv(t)
	spare := Fixtures.Spare(t, e.db, "S")
	Fixtures.Stock(t, e.db, spare.ID, e.center, 4, 0)

	req, err := e.svc.Submit(e.tech, SubmitInput{Fulfiller: e.center, Items: []ItemInput{{SpareID: spare.ID, Qty: 4}}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	e.db.Model(&Models.InventoryRecord{}).Where("spare_id = ?", spare.ID).Update("qty_good", 1)

	_, err = e.svc.Approve(e.manager, req.ID, []Decision{{ItemID: req.Items[0].ID, ApprovedQty: 4}})
	if !Models.IsInsufficientStock(err) {
		t.Fatalf("Expected InsufficientStockError, got %v", err)
	}
	stored, _ := e.svc.Get(req.ID)
	if stored.Status != Models.RequestPending || stored.Items[0].ApprovedQty != 0 {
		t.Errorf("Expected approval rolled back, got status=%s approved=%d", stored.Status, stored.Items[0].ApprovedQty)
	}
}

func TestReject(t *testing.T) {
	e := newEnv(t)
	spare := Fixtures.Spare(t, e.db, "S")

	req, err := e.svc.Submit(e.tech, SubmitInput{Fulfiller: e.center, Items: []ItemInput{{SpareID: spare.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := e.svc.Reject(e.manager, req.ID, ""); !Models.IsValidation(err) {
		t.Errorf("Expected ValidationError for empty reason, got %v", err)
	}
	rejected, err := e.svc.Reject(e.manager, req.ID, "not in stock")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != Models.RequestRejectedByRSM || rejected.RejectionReason != "not in stock" {
		t.Errorf("Unexpected rejected request %+v", rejected)
	}
	if _, err := e.svc.Reject(e.manager, req.ID, "again"); !Models.IsInvalidState(err) {
		t.Errorf("Expected InvalidStateError, got %v", err)
	}
	if _, err := e.svc.Approve(e.manager, req.ID, nil); !Models.IsInvalidState(err) {
		t.Errorf("Expected InvalidStateError, got %v", err)
	}
	if n := Fixtures.CountMovements(t, e.db, Models.ReferenceSpareRequest, req.ID); n != 0 {
		t.Errorf("Expected no movement, got %d", n)
	}
}

func TestApprove_Permissions(t *testing.T) {
	e := newEnv(t)
	spare := Fixtures.Spare(t, e.db, "S")
	Fixtures.Stock(t, e.db, spare.ID, e.center, 3, 0)

	req, err := e.svc.Submit(e.tech, SubmitInput{Fulfiller: e.center, Items: []ItemInput{{SpareID: spare.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	for _, p := range []Models.Principal{e.tech, Fixtures.ServiceCenter(4)} {
		if _, err := e.svc.Approve(p, req.ID, nil); !Models.IsPermission(err) {
			t.Errorf("Expected PermissionError for %s, got %v", p.Name, err)
		}
	}
	if _, err := e.svc.Approve(Fixtures.RSM(1), req.ID, []Decision{{ItemID: req.Items[0].ID, ApprovedQty: 1}}); err != nil {
		t.Errorf("Expected regional manager to approve, got %v", err)
	}
}

func TestSubmit_Validation(t *testing.T) {
	e := newEnv(t)
	spare := Fixtures.Spare(t, e.db, "S")

	tests := []struct {
		name    string
		p       Models.Principal
		in      SubmitInput
		checkFn func(error) bool
	}{
		{"zero_qty", e.tech, SubmitInput{Fulfiller: e.center, Items: []ItemInput{{SpareID: spare.ID, Qty: 0}}}, Models.IsValidation},
		{"duplicate_spare", e.tech, SubmitInput{Fulfiller: e.center,
			Items: []ItemInput{{SpareID: spare.ID, Qty: 1}, {SpareID: spare.ID, Qty: 2}}}, Models.IsValidation},
		{"no_items", e.tech, SubmitInput{Fulfiller: e.center}, Models.IsValidation},
		{"sideways", e.tech, SubmitInput{Fulfiller: Fixtures.Technician(8).Location,
			Items: []ItemInput{{SpareID: spare.ID, Qty: 1}}}, Models.IsValidation},
		{"downwards", e.manager, SubmitInput{Fulfiller: e.tech.Location,
			Items: []ItemInput{{SpareID: spare.ID, Qty: 1}}}, Models.IsValidation},
		{"unknown_spare", e.tech, SubmitInput{Fulfiller: e.center, Items: []ItemInput{{SpareID: 404, Qty: 1}}}, Models.IsNotFound},
		{"unknown_call", e.tech, SubmitInput{Fulfiller: e.center, CallID: ptr(77),
			Items: []ItemInput{{SpareID: spare.ID, Qty: 1}}}, Models.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Submit(tt.p, tt.in)
			if !tt.checkFn(err) {
				t.Errorf("Unexpected error %v", err)
			}
		})
	}

	requests, err := e.svc.List(Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("Expected nothing persisted, got %d requests", len(requests))
	}
}

func TestList_Filters(t *testing.T) {
	e := newEnv(t)
	spare := Fixtures.Spare(t, e.db, "S")
	call := Fixtures.Call(t, e.db, 7, 3)

	first, err := e.svc.Submit(e.tech, SubmitInput{Fulfiller: e.center, CallID: &call.ID,
		Items: []ItemInput{{SpareID: spare.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := e.svc.Submit(e.manager, SubmitInput{Fulfiller: e.branch,
		Items: []ItemInput{{SpareID: spare.ID, Qty: 5}}}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := e.svc.Reject(e.manager, first.ID, "duplicate"); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 2},
		{"pending", Filter{Status: Models.RequestPending}, 1},
		{"rejected", Filter{Status: Models.RequestRejectedByRSM}, 1},
		{"by_requester", Filter{Requester: &e.tech.Location}, 1},
		{"by_fulfiller", Filter{Fulfiller: &e.branch}, 1},
		{"by_call", Filter{CallID: call.ID}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.svc.List(tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d requests, got %d", tt.want, len(got))
			}
		})
	}
}

func ptr(v uint) *uint {
	return &v
}
