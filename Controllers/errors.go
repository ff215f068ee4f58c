package Controllers

import (
	"errors"
	"log"
	"strconv"

	"SpareLink/Models"
	"SpareLink/middleware"

	"github.com/gofiber/fiber/v2"
)

// respondError maps engine errors to HTTP statuses. Each body carries the
// error kind and the failing item context.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validation   *Models.ValidationError
		state        *Models.InvalidStateError
		insufficient *Models.InsufficientStockError
		notFound     *Models.NotFoundError
		permission   *Models.PermissionError
	)

	switch {
	case errors.Is(err, errNoPrincipal):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": err.Error()})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation", "message": validation.Error(), "details": validation,
		})
	case errors.As(err, &state):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "invalid_state", "message": state.Error(), "details": state,
		})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "insufficient_stock", "message": insufficient.Error(), "details": insufficient,
		})
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found", "message": notFound.Error(), "details": notFound,
		})
	case errors.As(err, &permission):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden", "message": permission.Error(), "details": permission,
		})
	}

	log.Printf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal", "message": "Internal server error",
	})
}

var errNoPrincipal = errors.New("not logged in")

func principal(c *fiber.Ctx) (Models.Principal, error) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return p, errNoPrincipal
	}
	return p, nil
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, Models.Invalid(name, "invalid %s %q", name, c.Params(name))
	}
	return uint(id), nil
}

func queryUint(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, Models.Invalid(name, "invalid %s %q", name, raw)
	}
	return uint(v), nil
}

func queryLimit(c *fiber.Ctx) int {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	return limit
}

// queryLocation reads <prefix>_type and <prefix>_id. It returns nil when
// neither is set.
func queryLocation(c *fiber.Ctx, prefix string) (*Models.Location, error) {
	typ := c.Query(prefix + "_type")
	id, err := queryUint(c, prefix+"_id")
	if err != nil {
		return nil, err
	}
	if typ == "" && id == 0 {
		return nil, nil
	}
	loc := Models.Location{Type: Models.LocationType(typ), ID: id}
	if !loc.Valid() {
		return nil, Models.Invalid(prefix, "invalid location %s", loc)
	}
	return &loc, nil
}
