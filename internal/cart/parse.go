package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxEnvelopeDepth = 3

// ErrMalformed is returned when a payload is neither a cart array nor a known envelope.
var ErrMalformed = errors.New("cart: malformed payload")

// wireItem accepts the loose shapes the backend and older browser mirrors produce.
type wireItem struct {
	ID              string                     `json:"id"`
	MongoID         string                     `json:"_id"`
	ProductID       json.RawMessage            `json:"productId"`
	Quantity        json.Number                `json:"quantity"`
	SelectedOptions map[string]any             `json:"selectedOptions"`
	OptionsPricing  map[string]decimal.Decimal `json:"optionsPricing"`
	AddOns          []AddOn                    `json:"addOns"`
	Attachments     *Attachments               `json:"attachments"`
	BasePrice       *decimal.Decimal           `json:"basePrice"`
	AddOnsPrice     *decimal.Decimal           `json:"addOnsPrice"`
	TotalPrice      *decimal.Decimal           `json:"totalPrice"`
	Product         *Product                   `json:"product"`
}

// populatedProduct is the catalog document some endpoints inline in place of productId.
type populatedProduct struct {
	ID      string `json:"id"`
	MongoID string `json:"_id"`
	Product
}

type envelope struct {
	Cart  json.RawMessage `json:"cart"`
	Items json.RawMessage `json:"items"`
	Data  json.RawMessage `json:"data"`
}

// Parse normalizes a cart payload into the canonical line item sequence.
// It accepts a bare array, or an object wrapping the array under "cart", "items" or "data".
func Parse(raw []byte) ([]LineItem, error) {
	return parse(raw, 0)
}

func parse(raw []byte, depth int) ([]LineItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Empty(), nil
	}

	switch trimmed[0] {
	case '[':
		var wire []wireItem
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		items := make([]LineItem, 0, len(wire))
		for _, w := range wire {
			item, err := w.normalize()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case '{':
		if depth >= maxEnvelopeDepth {
			return nil, fmt.Errorf("%w: envelope nested too deeply", ErrMalformed)
		}
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for _, inner := range []json.RawMessage{env.Cart, env.Items, env.Data} {
			if len(inner) > 0 {
				return parse(inner, depth+1)
			}
		}
		return Empty(), nil
	}
	return nil, fmt.Errorf("%w: unexpected %q", ErrMalformed, trimmed[0])
}

// Decode reads a persisted mirror value; corrupt data yields an empty cart and the parse error.
func Decode(raw []byte) ([]LineItem, error) {
	items, err := Parse(raw)
	if err != nil {
		return Empty(), err
	}
	return items, nil
}

// Encode serializes the whole sequence for a mirror write.
func Encode(items []LineItem) ([]byte, error) {
	if items == nil {
		items = Empty()
	}
	return json.Marshal(items)
}

func (w wireItem) normalize() (LineItem, error) {
	item := LineItem{
		ID:             firstNonEmpty(w.ID, w.MongoID),
		OptionsPricing: w.OptionsPricing,
		AddOns:         w.AddOns,
		Attachments:    w.Attachments,
		BasePrice:      w.BasePrice,
		AddOnsPrice:    w.AddOnsPrice,
		TotalPrice:     w.TotalPrice,
		Product:        w.Product,
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	productID, populated, err := decodeProductRef(w.ProductID)
	if err != nil {
		return LineItem{}, err
	}
	item.ProductID = productID
	if item.Product == nil && populated != nil {
		item.Product = populated
	}

	item.Quantity = 1
	if w.Quantity != "" {
		qty, err := w.Quantity.Float64()
		if err != nil {
			return LineItem{}, fmt.Errorf("%w: quantity %q", ErrMalformed, w.Quantity)
		}
		if qty >= 1 {
			item.Quantity = int(qty)
		}
	}

	if len(w.SelectedOptions) > 0 {
		item.SelectedOptions = make(map[string]string, len(w.SelectedOptions))
		for k, v := range w.SelectedOptions {
			if v == nil {
				continue
			}
			item.SelectedOptions[k] = fmt.Sprint(v)
		}
	}
	return item, nil
}

func decodeProductRef(raw json.RawMessage) (string, *Product, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil, nil
	}
	switch trimmed[0] {
	case '"':
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", nil, fmt.Errorf("%w: productId: %v", ErrMalformed, err)
		}
		return strings.TrimSpace(id), nil, nil
	case '{':
		var doc populatedProduct
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return "", nil, fmt.Errorf("%w: productId: %v", ErrMalformed, err)
		}
		product := doc.Product
		return firstNonEmpty(doc.ID, doc.MongoID), &product, nil
	}
	// numeric catalog ids
	return strings.Trim(string(trimmed), `"`), nil, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
