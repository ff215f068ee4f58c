package Models

import (
	"errors"
	"fmt"
	"strings"
)

// Violation points at the item and quantity that failed a check.
type Violation struct {
	ItemID  uint   `json:"item_id,omitempty"`
	SpareID uint   `json:"spare_id,omitempty"`
	Field   string `json:"field"`
	Value   int    `json:"value"`
	Limit   int    `json:"limit"`
	Message string `json:"message"`
}

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field      string      `json:"field,omitempty"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		if e.Field == "" {
			return e.Message
		}
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(msgs, "; "))
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidStateError is returned when a record is not in the state an
// operation requires, e.g. approving a request that was already decided.
type InvalidStateError struct {
	Entity string `json:"entity"`
	ID     uint   `json:"id"`
	State  string `json:"state"`
	Action string `json:"action"`
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in state %s", e.Action, e.Entity, e.ID, e.State)
}

// InsufficientStockError is returned instead of letting a bucket go negative.
type InsufficientStockError struct {
	SpareID   uint      `json:"spare_id"`
	Location  Location  `json:"location"`
	Condition Condition `json:"condition"`
	Available int       `json:"available"`
	Requested int       `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient %s stock of spare %d at %s: available %d, requested %d",
		e.Condition, e.SpareID, e.Location, e.Available, e.Requested)
}

type NotFoundError struct {
	Entity string `json:"entity"`
	ID     uint   `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// PermissionError is returned when the principal may not act on a location.
type PermissionError struct {
	Action   string   `json:"action"`
	Location Location `json:"location"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("not allowed to %s for %s", e.Action, e.Location)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}
