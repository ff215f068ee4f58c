package Controllers

import (
	"fmt"
	"time"

	"SpareLink/Inventory"
	"SpareLink/Models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// InventoryHandler serves ledger reads and movement history.
type InventoryHandler struct {
	DB *gorm.DB
}

func NewInventoryHandler(db *gorm.DB) *InventoryHandler {
	return &InventoryHandler{DB: db}
}

// targetLocation is the queried location, defaulting to the caller's own.
func targetLocation(c *fiber.Ctx, p Models.Principal) (Models.Location, error) {
	loc, err := queryLocation(c, "location")
	if err != nil {
		return Models.Location{}, err
	}
	if loc == nil {
		if !p.Location.Valid() {
			return Models.Location{}, Models.Invalid("location", "location_type and location_id are required")
		}
		return p.Location, nil
	}
	if !p.Manages(*loc) {
		return *loc, &Models.PermissionError{Action: "view stock", Location: *loc}
	}
	return *loc, nil
}

// GetQuantities returns both buckets of one spare at a location
func (h *InventoryHandler) GetQuantities(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	spareID, err := paramID(c, "spareId")
	if err != nil {
		return respondError(c, err)
	}
	loc, err := targetLocation(c, p)
	if err != nil {
		return respondError(c, err)
	}

	q, err := Inventory.GetQuantities(h.DB, spareID, loc)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(q)
}

// ListStock returns every spare held at a location
func (h *InventoryHandler) ListStock(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	loc, err := targetLocation(c, p)
	if err != nil {
		return respondError(c, err)
	}

	rows, err := Inventory.ListQuantities(h.DB, loc)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"location": loc, "stock": rows})
}

func (h *InventoryHandler) historyFilter(c *fiber.Ctx) (Inventory.HistoryFilter, error) {
	p, err := principal(c)
	if err != nil {
		return Inventory.HistoryFilter{}, err
	}
	refID, err := queryUint(c, "reference_id")
	if err != nil {
		return Inventory.HistoryFilter{}, err
	}
	f := Inventory.HistoryFilter{
		ReferenceType: c.Query("reference_type"),
		ReferenceID:   refID,
		Type:          Models.MovementType(c.Query("type")),
		Limit:         queryLimit(c),
	}
	if f.Type != "" && !f.Type.Valid() {
		return f, Models.Invalid("type", "unknown movement type %q", f.Type)
	}

	// Only roles that oversee several locations may list a reference
	// across all of them.
	if f.ReferenceType != "" && c.Query("location_type") == "" {
		if p.Role != Models.RoleAdmin && p.Role != Models.RoleRSM {
			return f, &Models.PermissionError{Action: "view movements", Location: p.Location}
		}
		return f, nil
	}
	loc, err := targetLocation(c, p)
	if err != nil {
		return f, err
	}
	f.Location = &loc
	return f, nil
}

// GetMovements lists movements for a location or a reference, newest first
func (h *InventoryHandler) GetMovements(c *fiber.Ctx) error {
	f, err := h.historyFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	movements, err := Inventory.History(h.DB, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(movements)
}

// ExportMovements downloads the same listing as an Excel workbook
func (h *InventoryHandler) ExportMovements(c *fiber.Ctx) error {
	f, err := h.historyFilter(c)
	if err != nil {
		return respondError(c, err)
	}
	movements, err := Inventory.History(h.DB, f)
	if err != nil {
		return respondError(c, err)
	}

	buf, err := Inventory.ExportHistory(movements)
	if err != nil {
		return respondError(c, err)
	}

	filename := fmt.Sprintf("movements_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}
