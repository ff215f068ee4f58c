package Controllers

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"SpareLink/Models"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gofiber/fiber/v2"
)

// Ingest is the single typed boundary for request bodies: decode, normalize
// legacy field names, validate.
type Ingest struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewIngest() *Ingest {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(err)
	}
	return &Ingest{validate: v, trans: trans}
}

// Parse decodes the JSON body into out and validates it.
func (i *Ingest) Parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return Models.Invalid("body", "malformed request body: %v", err)
	}
	return i.Check(out)
}

func (i *Ingest) Check(out any) error {
	err := i.validate.Struct(out)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Models.Invalid("body", "%v", err)
	}

	verr := &Models.ValidationError{Field: "body", Message: "invalid request body"}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if dot := strings.Index(field, "."); dot >= 0 {
			field = field[dot+1:]
		}
		verr.Violations = append(verr.Violations, Models.Violation{Field: field, Message: fe.Translate(i.trans)})
	}
	return verr
}

// renameKeys rewrites legacy keys of a JSON object to their canonical names.
// A canonical key wins over its aliases.
func renameKeys(data []byte, aliases map[string]string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for alias, canonical := range aliases {
		value, ok := fields[alias]
		if !ok {
			continue
		}
		delete(fields, alias)
		if _, exists := fields[canonical]; !exists {
			fields[canonical] = value
		}
	}
	return json.Marshal(fields)
}

var spareAliases = map[string]string{
	"spareId":  "spare_id",
	"sku_id":   "spare_id",
	"skuId":    "spare_id",
	"part_id":  "spare_id",
	"partId":   "spare_id",
	"itemId":   "item_id",
	"id":       "item_id",
	"itemType": "item_type",
	"type":     "item_type",
}

var qtyAliases = map[string]string{
	"quantity":      "qty",
	"requested_qty": "qty",
	"requestedQty":  "qty",
	"approved_qty":  "qty",
	"approvedQty":   "qty",
	"received_qty":  "qty",
	"receivedQty":   "qty",
	"verified_qty":  "qty",
	"verifiedQty":   "qty",
	"defectReason":  "defect_reason",
}

func renameItemKeys(data []byte) ([]byte, error) {
	merged := make(map[string]string, len(spareAliases)+len(qtyAliases))
	for k, v := range spareAliases {
		merged[k] = v
	}
	for k, v := range qtyAliases {
		merged[k] = v
	}
	return renameKeys(data, merged)
}

type RequestItemDTO struct {
	SpareID uint `json:"spare_id" validate:"required"`
	Qty     int  `json:"qty" validate:"gt=0"`
}

func (d *RequestItemDTO) UnmarshalJSON(data []byte) error {
	type plain RequestItemDTO
	normalized, err := renameItemKeys(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, (*plain)(d))
}

type SubmitRequestDTO struct {
	Fulfiller Models.Location  `json:"fulfiller"`
	CallID    *uint            `json:"call_id"`
	Notes     string           `json:"notes" validate:"max=1000"`
	Items     []RequestItemDTO `json:"items" validate:"required,min=1,dive"`
}

func (d *SubmitRequestDTO) UnmarshalJSON(data []byte) error {
	type plain SubmitRequestDTO
	normalized, err := renameKeys(data, map[string]string{
		"fulfillerLocation":  "fulfiller",
		"fulfiller_location": "fulfiller",
		"callId":             "call_id",
		"spares":             "items",
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, (*plain)(d))
}

// ItemQtyDTO carries a per-item decision or count. Bounds are checked by the
// workflow so every offending item is reported together.
type ItemQtyDTO struct {
	ItemID uint `json:"item_id" validate:"required"`
	Qty    int  `json:"qty"`
}

func (d *ItemQtyDTO) UnmarshalJSON(data []byte) error {
	type plain ItemQtyDTO
	normalized, err := renameItemKeys(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, (*plain)(d))
}

type ItemQtysDTO struct {
	Items []ItemQtyDTO `json:"items" validate:"dive"`
}

type ReasonDTO struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

func (d *ReasonDTO) UnmarshalJSON(data []byte) error {
	type plain ReasonDTO
	normalized, err := renameKeys(data, map[string]string{
		"rejection_reason": "reason",
		"rejectionReason":  "reason",
		"hold_reason":      "reason",
		"holdReason":       "reason",
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, (*plain)(d))
}

type ReturnItemDTO struct {
	SpareID      uint                  `json:"spare_id" validate:"required"`
	ItemType     Models.ReturnItemType `json:"item_type" validate:"required,oneof=defective unused"`
	Qty          int                   `json:"qty" validate:"gt=0"`
	DefectReason string                `json:"defect_reason" validate:"max=500"`
}

func (d *ReturnItemDTO) UnmarshalJSON(data []byte) error {
	type plain ReturnItemDTO
	normalized, err := renameItemKeys(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, (*plain)(d))
}

type SubmitReturnDTO struct {
	Receiver Models.Location `json:"receiver"`
	Notes    string          `json:"notes" validate:"max=1000"`
	Items    []ReturnItemDTO `json:"items" validate:"required,min=1,dive"`
}

func (d *SubmitReturnDTO) UnmarshalJSON(data []byte) error {
	type plain SubmitReturnDTO
	normalized, err := renameKeys(data, map[string]string{
		"receiverLocation":  "receiver",
		"receiver_location": "receiver",
		"spares":            "items",
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, (*plain)(d))
}

type ConsumptionDTO struct {
	SpareID     uint `json:"spare_id" validate:"required"`
	UsedQty     int  `json:"used_qty" validate:"gte=0"`
	ReturnedQty *int `json:"returned_qty" validate:"omitempty,gte=0"`
	IssuedQty   *int `json:"issued_qty" validate:"omitempty,gte=0"`
}

func (d *ConsumptionDTO) UnmarshalJSON(data []byte) error {
	type plain ConsumptionDTO
	aliases := map[string]string{
		"usedQty":     "used_qty",
		"returnedQty": "returned_qty",
		"issuedQty":   "issued_qty",
	}
	for k, v := range spareAliases {
		aliases[k] = v
	}
	normalized, err := renameKeys(data, aliases)
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, (*plain)(d))
}
