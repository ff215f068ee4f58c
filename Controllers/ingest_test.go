package Controllers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"SpareLink/Models"
)

func TestRenameKeys_CanonicalWins(t *testing.T) {
	out, err := renameKeys([]byte(`{"spareId": 4, "spare_id": 9, "quantity": 2}`), map[string]string{
		"spareId":  "spare_id",
		"quantity": "qty",
	})
	if err != nil {
		t.Fatalf("renameKeys failed: %v", err)
	}

	var fields map[string]int
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("Failed to decode %s: %v", out, err)
	}
	if fields["spare_id"] != 9 || fields["qty"] != 2 {
		t.Errorf("Expected spare_id=9 qty=2, got %v", fields)
	}
	if _, ok := fields["spareId"]; ok {
		t.Errorf("Expected alias to be removed, got %v", fields)
	}
}

func TestDTOAliases(t *testing.T) {
	var req SubmitRequestDTO
	body := `{"fulfillerLocation": {"type": "branch", "id": 2}, "callId": 11,
		"spares": [{"partId": 5, "requestedQty": 3}]}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if req.Fulfiller != (Models.Location{Type: Models.LocationBranch, ID: 2}) {
		t.Errorf("Unexpected fulfiller %v", req.Fulfiller)
	}
	if req.CallID == nil || *req.CallID != 11 {
		t.Errorf("Expected call id 11, got %v", req.CallID)
	}
	if len(req.Items) != 1 || req.Items[0].SpareID != 5 || req.Items[0].Qty != 3 {
		t.Errorf("Unexpected items %+v", req.Items)
	}

	var decisions ItemQtysDTO
	if err := json.Unmarshal([]byte(`{"items": [{"itemId": 8, "approvedQty": 0}, {"id": 9, "qty": 4}]}`), &decisions); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decisions.Items) != 2 || decisions.Items[0].ItemID != 8 || decisions.Items[1].Qty != 4 {
		t.Errorf("Unexpected decisions %+v", decisions.Items)
	}

	var ret SubmitReturnDTO
	if err := json.Unmarshal([]byte(`{"receiver_location": {"type": "service_center", "id": 3},
		"items": [{"skuId": 1, "itemType": "defective", "quantity": 2, "defectReason": "burnt"}]}`), &ret); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	item := ret.Items[0]
	if item.SpareID != 1 || item.ItemType != Models.ReturnItemDefective || item.Qty != 2 || item.DefectReason != "burnt" {
		t.Errorf("Unexpected return item %+v", item)
	}

	var reason ReasonDTO
	if err := json.Unmarshal([]byte(`{"hold_reason": "customer away"}`), &reason); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if reason.Reason != "customer away" {
		t.Errorf("Expected hold_reason alias, got %q", reason.Reason)
	}

	var usage ConsumptionDTO
	if err := json.Unmarshal([]byte(`{"spareId": 3, "usedQty": 1, "returnedQty": 0}`), &usage); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if usage.SpareID != 3 || usage.UsedQty != 1 || usage.ReturnedQty == nil || *usage.ReturnedQty != 0 || usage.IssuedQty != nil {
		t.Errorf("Unexpected consumption %+v", usage)
	}
}

func TestIngestCheck(t *testing.T) {
	ingest := NewIngest()

	tests := []struct {
		name   string
		dto    any
		fields []string
	}{
		{
			name: "valid request",
			dto: &SubmitRequestDTO{
				Fulfiller: Models.Location{Type: Models.LocationServiceCenter, ID: 1},
				Items:     []RequestItemDTO{{SpareID: 1, Qty: 1}},
			},
		},
		{
			name: "bad location and quantity",
			dto: &SubmitRequestDTO{
				Fulfiller: Models.Location{Type: "warehouse", ID: 1},
				Items:     []RequestItemDTO{{SpareID: 1, Qty: 0}},
			},
			fields: []string{"fulfiller.type", "items[0].qty"},
		},
		{
			name:   "no items",
			dto:    &SubmitReturnDTO{Receiver: Models.Location{Type: Models.LocationBranch, ID: 1}},
			fields: []string{"items"},
		},
		{
			name:   "empty reason",
			dto:    &ReasonDTO{},
			fields: []string{"reason"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ingest.Check(tt.dto)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			var verr *Models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if len(verr.Violations) != len(tt.fields) {
				t.Fatalf("Expected %d violations, got %+v", len(tt.fields), verr.Violations)
			}
			for i, field := range tt.fields {
				if verr.Violations[i].Field != field {
					t.Errorf("Expected violation on %s, got %s", field, verr.Violations[i].Field)
				}
				if strings.TrimSpace(verr.Violations[i].Message) == "" {
					t.Errorf("Expected translated message for %s", field)
				}
			}
		})
	}
}
