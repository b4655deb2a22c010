package ledger

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-ledger/pkg/enums"
)

// ErrMalformedPayload marks a recognized event whose payload cannot be decoded or fails validation.
var ErrMalformedPayload = stdErrors.New("malformed ledger payload")

// Payload is the closed set of payload shapes keyed by (entity type, event type).
type Payload interface {
	isPayload()
}

// QuantityPayload carries SEED, STOCK_ADDED, RESERVED, RELEASED and COMMITTED deltas.
type QuantityPayload struct {
	Qty     int64      `json:"qty" validate:"gt=0"`
	OrderID *uuid.UUID `json:"orderId,omitempty"`
}

// AdjustedPayload sets inventory counters to absolute values.
type AdjustedPayload struct {
	OnHand   int64  `json:"onHand" validate:"gte=0"`
	Reserved int64  `json:"reserved" validate:"gte=0"`
	Reason   string `json:"reason,omitempty" validate:"max=512"`
}

// OrderStatusPayload accompanies order lifecycle events; the event type is the status.
type OrderStatusPayload struct {
	Reason string `json:"reason,omitempty" validate:"max=512"`
}

type ShipmentPayload struct {
	OrderID  *uuid.UUID `json:"orderId,omitempty"`
	Carrier  string     `json:"carrier,omitempty" validate:"max=64"`
	Tracking string     `json:"tracking,omitempty" validate:"max=128"`
}

// SkipPayload is produced for event or entity types replay assigns no effect to.
type SkipPayload struct {
	EntityType string
	EventType  string
}

func (QuantityPayload) isPayload()    {}
func (AdjustedPayload) isPayload()    {}
func (OrderStatusPayload) isPayload() {}
func (ShipmentPayload) isPayload()    {}
func (SkipPayload) isPayload()        {}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Decode resolves the payload variant for an event. Unrecognized combinations decode to
// SkipPayload without error; recognized ones must unmarshal and validate.
func Decode(entityType enums.LedgerEntityType, eventType enums.LedgerEventType, raw json.RawMessage) (Payload, error) {
	if !entityType.IsValid() || !eventType.RecognizedFor(entityType) {
		return SkipPayload{EntityType: string(entityType), EventType: string(eventType)}, nil
	}

	switch entityType {
	case enums.LedgerEntityInventory:
		if eventType == enums.LedgerEventAdjusted {
			var p AdjustedPayload
			return decodeInto(entityType, eventType, raw, &p)
		}
		var p QuantityPayload
		return decodeInto(entityType, eventType, raw, &p)
	case enums.LedgerEntityOrder:
		var p OrderStatusPayload
		return decodeInto(entityType, eventType, raw, &p)
	default:
		var p ShipmentPayload
		decoded, err := decodeInto(entityType, eventType, raw, &p)
		if err != nil {
			return nil, err
		}
		if err := checkShipment(eventType, p); err != nil {
			return nil, err
		}
		return decoded, nil
	}
}

func decodeInto[T Payload](entityType enums.LedgerEntityType, eventType enums.LedgerEventType, raw json.RawMessage, dest *T) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, dest); err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", ErrMalformedPayload, entityType, eventType, err)
		}
	}
	if err := payloadValidator.Struct(dest); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %s", ErrMalformedPayload, entityType, eventType, describeValidation(err))
	}
	return *dest, nil
}

func checkShipment(eventType enums.LedgerEventType, p ShipmentPayload) error {
	switch eventType {
	case enums.LedgerEventCreated:
		if p.OrderID == nil || *p.OrderID == uuid.Nil {
			return fmt.Errorf("%w: SHIPMENT/CREATED: orderId is required", ErrMalformedPayload)
		}
	case enums.LedgerEventShipped:
		if p.Carrier == "" || p.Tracking == "" {
			return fmt.Errorf("%w: SHIPMENT/SHIPPED: carrier and tracking are required", ErrMalformedPayload)
		}
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !stdErrors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
