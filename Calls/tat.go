package Calls

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"SpareLink/Inventory"
	"SpareLink/Models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StartTAT starts the call's turnaround clock. Starting it again returns the
// existing tracking unchanged.
func (s *Service) StartTAT(p Models.Principal, callID uint) (*Models.TATTracking, error) {
	var tat Models.TATTracking
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		call, err := s.assignment(tx, p, callID, "start tat")
		if err != nil {
			return err
		}

		existing, found, err := lockTracking(tx, callID)
		if err != nil {
			return err
		}
		if found {
			tat = existing
			return nil
		}
		if err := requireOpen(call, "start tat for"); err != nil {
			return err
		}

		seed := Models.TATTracking{CallID: callID, TATStartTime: s.Now(), Status: Models.TATInProgress}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return fmt.Errorf("create tat tracking: %w", err)
		}
		if err := tx.Where("call_id = ?", callID).First(&tat).Error; err != nil {
			return fmt.Errorf("load tat tracking: %w", err)
		}
		log.Printf("TAT started for call %d", callID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tat, nil
}

// OpenHold pauses the clock. A call has at most one open hold.
func (s *Service) OpenHold(p Models.Principal, callID uint, reason string) (*Models.TATHold, error) {
	if reason == "" {
		return nil, Models.Invalid("hold_reason", "hold reason is required")
	}

	var hold Models.TATHold
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.assignment(tx, p, callID, "hold tat"); err != nil {
			return err
		}

		tat, found, err := lockTracking(tx, callID)
		if err != nil {
			return err
		}
		if !found {
			return &Models.InvalidStateError{Entity: "tat", ID: callID, State: "not_started", Action: "open hold on"}
		}
		if tat.Status != Models.TATInProgress {
			return &Models.InvalidStateError{Entity: "tat", ID: callID, State: string(tat.Status), Action: "open hold on"}
		}

		current, open, err := openHold(tx, callID)
		if err != nil {
			return err
		}
		if open {
			return &Models.InvalidStateError{Entity: "hold", ID: current.ID, State: "open", Action: "open another hold beside"}
		}

		hold = Models.TATHold{CallID: callID, HoldReason: reason, HoldStartTime: s.Now()}
		if err := tx.Create(&hold).Error; err != nil {
			return fmt.Errorf("create hold: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Call %d on hold: %s", callID, reason)
	return &hold, nil
}

// CloseHold ends a hold and adds its whole minutes to the call's hold total.
func (s *Service) CloseHold(p Models.Principal, holdID uint) (*Models.TATHold, error) {
	var hold Models.TATHold
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&hold, holdID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Models.NotFoundError{Entity: "hold", ID: holdID}
		}
		if err != nil {
			return fmt.Errorf("load hold: %w", err)
		}
		if _, err := s.assignment(tx, p, hold.CallID, "close hold"); err != nil {
			return err
		}
		if !hold.Open() {
			return &Models.InvalidStateError{Entity: "hold", ID: holdID, State: "closed", Action: "close"}
		}
		if _, _, err := lockTracking(tx, hold.CallID); err != nil {
			return err
		}
		return endHold(tx, &hold, s.Now())
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Call %d hold %d closed after %d minutes", hold.CallID, hold.ID, hold.Minutes)
	return &hold, nil
}

// CloseResult is everything closeCall changed.
type CloseResult struct {
	CallID     uint                    `json:"call_id"`
	Usage      []Models.CallSpareUsage `json:"usage"`
	Settlement *Models.StockMovement   `json:"settlement,omitempty"`
	TAT        Models.TATTracking      `json:"tat"`
	ClosedHold *Models.TATHold         `json:"closed_hold,omitempty"`
}

// CloseCall settles the call in one transaction. Issued quantity that was
// neither reported used nor returned counts as consumed, every used quantity
// not yet marked defective is converted in a single settlement movement at
// the technician currently assigned to the call, an open hold is closed and
// the turnaround clock stops. Rows settled here are restamped with that
// technician.
func (s *Service) CloseCall(p Models.Principal, callID uint) (*CloseResult, error) {
	result := &CloseResult{CallID: callID}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		call, err := s.assignment(tx, p, callID, "close call")
		if err != nil {
			return err
		}
		if err := requireOpen(call, "close"); err != nil {
			return err
		}
		now := s.Now()

		var rows []Models.CallSpareUsage
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("call_id = ?", callID).
			Order("spare_id ASC").
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("load usage: %w", err)
		}

		var lines []Inventory.Line
		for i := range rows {
			row := &rows[i]
			if row.UsedQty == 0 && row.IssuedQty > row.ReturnedQty {
				row.UsedQty = row.IssuedQty - row.ReturnedQty
			}
			row.UsageStatus = Models.ComputeUsageStatus(row.IssuedQty, row.UsedQty)
			if pending := row.UsedQty - row.AppliedQty; pending > 0 {
				lines = append(lines, Inventory.Line{
					SpareID:         row.SpareID,
					Qty:             pending,
					Condition:       Models.ConditionDefective,
					SourceCondition: Models.ConditionGood,
				})
				row.AppliedQty = row.UsedQty
				row.TechnicianID = call.TechnicianID
			}
			if err := tx.Save(row).Error; err != nil {
				return fmt.Errorf("save usage: %w", err)
			}
		}
		result.Usage = rows

		if len(lines) > 0 {
			technician := call.Technician()
			movement, err := s.Movements.Record(tx, Inventory.MovementInput{
				Type:          Models.MovementConsumptionSettlement,
				Source:        &technician,
				Destination:   &technician,
				ReferenceType: Models.ReferenceCall,
				ReferenceID:   callID,
				CreatedBy:     p.UserID,
				Metadata:      map[string]any{"closed_by": p.Name},
				Lines:         lines,
			})
			if err != nil {
				return err
			}
			result.Settlement = movement
		}

		tat, found, err := lockTracking(tx, callID)
		if err != nil {
			return err
		}
		if !found {
			tat = Models.TATTracking{CallID: callID, TATStartTime: now, Status: Models.TATInProgress}
			if err := tx.Create(&tat).Error; err != nil {
				return fmt.Errorf("create tat tracking: %w", err)
			}
		}

		hold, open, err := openHold(tx, callID)
		if err != nil {
			return err
		}
		if open {
			if err := endHold(tx, &hold, now); err != nil {
				return err
			}
			tat.TotalHoldMinutes += hold.Minutes
			result.ClosedHold = &hold
		}

		tat.TATEndTime = &now
		tat.Status = Models.TATResolved
		if s.SLAMinutes > 0 && netMinutes(tat, now) > s.SLAMinutes {
			tat.Breached = true
		}
		err = tx.Model(&Models.TATTracking{}).Where("id = ?", tat.ID).Updates(map[string]any{
			"tat_end_time": now,
			"status":       tat.Status,
			"breached":     tat.Breached,
		}).Error
		if err != nil {
			return fmt.Errorf("resolve tat: %w", err)
		}
		result.TAT = tat

		return s.Calls.MarkClosed(tx, callID, now)
	})
	if err != nil {
		return nil, err
	}

	settled := 0
	if result.Settlement != nil {
		settled = result.Settlement.TotalQty
	}
	log.Printf("Call %d closed by %s: %d spares settled, net TAT %d minutes",
		callID, p.Name, settled, netMinutes(result.TAT, *result.TAT.TATEndTime))
	return result, nil
}

// TATSummary reports the call's clock. Minutes of a hold that is still open
// count as hold time up to now.
type TATSummary struct {
	CallID           uint             `json:"call_id"`
	Status           Models.TATStatus `json:"status"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          *time.Time       `json:"end_time"`
	GrossMinutes     int              `json:"gross_minutes"`
	HoldMinutes      int              `json:"hold_minutes"`
	NetMinutes       int              `json:"net_minutes"`
	NetHours         decimal.Decimal  `json:"net_hours"`
	OnHold           bool             `json:"on_hold"`
	Breached         bool             `json:"breached"`
	SLAMinutes       int              `json:"sla_minutes,omitempty"`
	RemainingMinutes *int             `json:"remaining_minutes,omitempty"`
}

func (s *Service) Summary(p Models.Principal, callID uint) (*TATSummary, error) {
	if _, err := s.assignment(s.DB, p, callID, "view tat"); err != nil {
		return nil, err
	}
	var tat Models.TATTracking
	err := s.DB.Where("call_id = ?", callID).First(&tat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &Models.NotFoundError{Entity: "tat tracking", ID: callID}
	}
	if err != nil {
		return nil, fmt.Errorf("load tat tracking: %w", err)
	}
	hold, open, err := openHold(s.DB, callID)
	if err != nil {
		return nil, err
	}
	return s.summarize(tat, hold, open, s.Now()), nil
}

func (s *Service) summarize(tat Models.TATTracking, hold Models.TATHold, open bool, now time.Time) *TATSummary {
	end := now
	if tat.TATEndTime != nil {
		end = *tat.TATEndTime
	}
	holdMinutes := tat.TotalHoldMinutes
	if open {
		holdMinutes += Models.HoldMinutes(hold.HoldStartTime, end)
	}
	gross := Models.HoldMinutes(tat.TATStartTime, end)
	net := gross - holdMinutes
	if net < 0 {
		net = 0
	}

	summary := &TATSummary{
		CallID:       tat.CallID,
		Status:       tat.Status,
		StartTime:    tat.TATStartTime,
		EndTime:      tat.TATEndTime,
		GrossMinutes: gross,
		HoldMinutes:  holdMinutes,
		NetMinutes:   net,
		NetHours:     decimal.NewFromInt(int64(net)).Div(decimal.NewFromInt(60)).Round(2),
		OnHold:       open,
		Breached:     tat.Breached,
		SLAMinutes:   s.SLAMinutes,
	}
	if s.SLAMinutes > 0 {
		remaining := s.SLAMinutes - net
		summary.RemainingMinutes = &remaining
		if remaining < 0 {
			summary.Breached = true
		}
	}
	return summary
}

// FlagBreaches marks in-progress calls whose net TAT passed the SLA. Each
// call is flagged and reported once.
func (s *Service) FlagBreaches(ctx context.Context) ([]Models.TATBreach, error) {
	if s.SLAMinutes <= 0 {
		return nil, nil
	}
	db := s.DB.WithContext(ctx)
	now := s.Now()

	var trackings []Models.TATTracking
	err := db.Where("status = ? AND breached = ?", Models.TATInProgress, false).
		Order("call_id ASC").
		Find(&trackings).Error
	if err != nil {
		return nil, fmt.Errorf("load tat trackings: %w", err)
	}

	var breaches []Models.TATBreach
	for _, tat := range trackings {
		if err := ctx.Err(); err != nil {
			return breaches, err
		}
		hold, open, err := openHold(db, tat.CallID)
		if err != nil {
			return breaches, err
		}
		summary := s.summarize(tat, hold, open, now)
		if summary.NetMinutes <= s.SLAMinutes {
			continue
		}

		res := db.Model(&Models.TATTracking{}).
			Where("id = ? AND breached = ?", tat.ID, false).
			Update("breached", true)
		if res.Error != nil {
			return breaches, fmt.Errorf("flag breach for call %d: %w", tat.CallID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		breach := Models.TATBreach{CallID: tat.CallID, NetMinutes: summary.NetMinutes, SLAMinutes: s.SLAMinutes}
		if call, err := s.Calls.Lookup(db, tat.CallID); err == nil {
			breach.TechnicianID = call.TechnicianID
		}
		breaches = append(breaches, breach)
		log.Printf("TAT breach: call %d at %d net minutes (SLA %d)", tat.CallID, summary.NetMinutes, s.SLAMinutes)
	}
	return breaches, nil
}

func netMinutes(tat Models.TATTracking, end time.Time) int {
	net := Models.HoldMinutes(tat.TATStartTime, end) - tat.TotalHoldMinutes
	if net < 0 {
		return 0
	}
	return net
}
