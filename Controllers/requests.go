package Controllers

import (
	"SpareLink/Models"
	"SpareLink/Requests"

	"github.com/gofiber/fiber/v2"
)

type RequestHandler struct {
	Service *Requests.Service
	Ingest  *Ingest
}

func NewRequestHandler(svc *Requests.Service, ingest *Ingest) *RequestHandler {
	return &RequestHandler{Service: svc, Ingest: ingest}
}

func (h *RequestHandler) Submit(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	var body SubmitRequestDTO
	if err := h.Ingest.Parse(c, &body); err != nil {
		return respondError(c, err)
	}

	in := Requests.SubmitInput{Fulfiller: body.Fulfiller, CallID: body.CallID, Notes: body.Notes}
	for _, item := range body.Items {
		in.Items = append(in.Items, Requests.ItemInput{SpareID: item.SpareID, Qty: item.Qty})
	}
	req, err := h.Service.Submit(p, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// List shows the caller's own requests, or with view=incoming the requests
// waiting on the caller's location. Managers may filter freely.
func (h *RequestHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	callID, err := queryUint(c, "call_id")
	if err != nil {
		return respondError(c, err)
	}
	f := Requests.Filter{
		Status: Models.RequestStatus(c.Query("status")),
		CallID: callID,
		Limit:  queryLimit(c),
	}
	if f.Requester, err = queryLocation(c, "requester"); err != nil {
		return respondError(c, err)
	}
	if f.Fulfiller, err = queryLocation(c, "fulfiller"); err != nil {
		return respondError(c, err)
	}

	switch {
	case c.Query("view") == "incoming":
		if f.Fulfiller == nil {
			f.Fulfiller = &p.Location
		}
		if !p.Manages(*f.Fulfiller) {
			return respondError(c, &Models.PermissionError{Action: "list requests", Location: *f.Fulfiller})
		}
	case f.Requester == nil && f.Fulfiller == nil && p.Role != Models.RoleRSM && p.Role != Models.RoleAdmin:
		f.Requester = &p.Location
	}
	if f.Requester != nil && !p.Manages(*f.Requester) {
		return respondError(c, &Models.PermissionError{Action: "list requests", Location: *f.Requester})
	}

	requests, err := h.Service.List(f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

func (h *RequestHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	req, err := h.Service.Get(id)
	if err != nil {
		return respondError(c, err)
	}
	if !p.Manages(req.Requester()) && !p.Manages(req.Fulfiller()) {
		return respondError(c, &Models.PermissionError{Action: "view request", Location: req.Requester()})
	}
	return c.JSON(req)
}

func (h *RequestHandler) Approve(c *fiber.Ctx) error {
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

	decisions := make([]Requests.Decision, 0, len(body.Items))
	for _, item := range body.Items {
		decisions = append(decisions, Requests.Decision{ItemID: item.ItemID, ApprovedQty: item.Qty})
	}
	req, err := h.Service.Approve(p, id, decisions)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

func (h *RequestHandler) Reject(c *fiber.Ctx) error {
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

	req, err := h.Service.Reject(p, id, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}
