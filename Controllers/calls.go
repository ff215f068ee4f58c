package Controllers

import (
	"SpareLink/Calls"

	"github.com/gofiber/fiber/v2"
)

type CallHandler struct {
	Service *Calls.Service
	Ingest  *Ingest
}

func NewCallHandler(svc *Calls.Service, ingest *Ingest) *CallHandler {
	return &CallHandler{Service: svc, Ingest: ingest}
}

// RecordConsumption reports used and returned quantity of a spare on a call
func (h *CallHandler) RecordConsumption(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	callID, err := paramID(c, "callId")
	if err != nil {
		return respondError(c, err)
	}
	var body ConsumptionDTO
	if err := h.Ingest.Parse(c, &body); err != nil {
		return respondError(c, err)
	}

	usage, err := h.Service.RecordConsumption(p, Calls.ConsumptionInput{
		CallID:      callID,
		SpareID:     body.SpareID,
		UsedQty:     body.UsedQty,
		ReturnedQty: body.ReturnedQty,
		IssuedQty:   body.IssuedQty,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(usage)
}

func (h *CallHandler) StartTAT(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	callID, err := paramID(c, "callId")
	if err != nil {
		return respondError(c, err)
	}
	tat, err := h.Service.StartTAT(p, callID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tat)
}

func (h *CallHandler) OpenHold(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	callID, err := paramID(c, "callId")
	if err != nil {
		return respondError(c, err)
	}
	var body ReasonDTO
	if err := h.Ingest.Parse(c, &body); err != nil {
		return respondError(c, err)
	}

	hold, err := h.Service.OpenHold(p, callID, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(hold)
}

func (h *CallHandler) CloseHold(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	holdID, err := paramID(c, "holdId")
	if err != nil {
		return respondError(c, err)
	}
	hold, err := h.Service.CloseHold(p, holdID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(hold)
}

func (h *CallHandler) CloseCall(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	callID, err := paramID(c, "callId")
	if err != nil {
		return respondError(c, err)
	}
	result, err := h.Service.CloseCall(p, callID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *CallHandler) Summary(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return respondError(c, err)
	}
	callID, err := paramID(c, "callId")
	if err != nil {
		return respondError(c, err)
	}
	summary, err := h.Service.Summary(p, callID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}
