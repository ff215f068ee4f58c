package Controllers

import (
	"SpareLink/Models"
	"SpareLink/Returns"

	"github.com/gofiber/fiber/v2"
)

type ReturnHandler struct {
	Service *Returns.Service
	Ingest  *Ingest
}

func NewReturnHandler(svc *Returns.Service, ingest *Ingest) *ReturnHandler {
	return &ReturnHandler{Service: svc, Ingest: ingest}
}

func (h *ReturnHandler) Submit(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	var body SubmitReturnDTO
	if err := h.Ingest.Parse(c, &body); err != nil {
		return respondError(c, err)
	}

	in := Returns.SubmitInput{Receiver: body.Receiver, Notes: body.Notes}
	for _, item := range body.Items {
		in.Items = append(in.Items, Returns.ItemInput{
			SpareID:      item.SpareID,
			ItemType:     item.ItemType,
			Qty:          item.Qty,
			DefectReason: item.DefectReason,
		})
	}
	ret, err := h.Service.Submit(p, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ret)
}

// List shows returns sent by the caller, or with view=incoming those
// addressed to the caller's location.
func (h *ReturnHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	f := Returns.Filter{
		Status: Models.ReturnStatus(c.Query("status")),
		Limit:  queryLimit(c),
	}
	if f.Holder, err = queryLocation(c, "holder"); err != nil {
		return respondError(c, err)
	}
	if f.Receiver, err = queryLocation(c, "receiver"); err != nil {
		return respondError(c, err)
	}

	switch {
	case c.Query("view") == "incoming":
		if f.Receiver == nil {
			f.Receiver = &p.Location
		}
	case f.Holder == nil && f.Receiver == nil && p.Role != Models.RoleRSM && p.Role != Models.RoleAdmin:
		f.Holder = &p.Location
	}
	for _, loc := range []*Models.Location{f.Holder, f.Receiver} {
		if loc != nil && !p.Manages(*loc) {
			return respondError(c, &Models.PermissionError{Action: "list returns", Location: *loc})
		}
	}

	returns, err := h.Service.List(f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(returns)
}

func (h *ReturnHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	ret, err := h.Service.Get(id)
	if err != nil {
		return respondError(c, err)
	}
	if !p.Manages(ret.Holder()) && !p.Manages(ret.Receiver()) {
		return respondError(c, &Models.PermissionError{Action: "view return", Location: ret.Holder()})
	}
	return c.JSON(ret)
}

func (h *ReturnHandler) Receive(c *fiber.Ctx) error {
	return h.count(c, h.Service.Receive)
}

func (h *ReturnHandler) Verify(c *fiber.Ctx) error {
	return h.count(c, h.Service.Verify)
}

type countFunc func(Models.Principal, uint, []Returns.ItemQty) (*Models.ReturnRequest, error)

func (h *ReturnHandler) count(c *fiber.Ctx, apply countFunc) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var body ItemQtysDTO
	if err := h.Ingest.Parse(c, &body); err != nil {
		return respondError(c, err)
	}

	counts := make([]Returns.ItemQty, 0, len(body.Items))
	for _, item := range body.Items {
		counts = append(counts, Returns.ItemQty{ItemID: item.ItemID, Qty: item.Qty})
	}
	ret, err := apply(p, id, counts)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ret)
}

func (h *ReturnHandler) Reject(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var body ReasonDTO
	if err := h.Ingest.Parse(c, &body); err != nil {
		return respondError(c, err)
	}

	ret, err := h.Service.Reject(p, id, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ret)
}
