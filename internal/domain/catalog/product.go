package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/example/pricelist/internal/domain"
)

var (
	ErrMissingID     = errors.New("product id or model is required")
	ErrInvalidPrice  = errors.New("price must be non-negative")
	ErrInvalidStock  = errors.New("stock must be a non-negative integer")
	ErrInvalidImage  = errors.New("image must be an absolute http(s) url")
	ErrUnknownField  = errors.New("field is not inline-editable")
	ErrImageNotFound = errors.New("image index out of range")
)

// Product is a stock-keeping unit in the price list. The id doubles as the
// human-readable model code.
type Product struct {
	ID            string          `json:"id"`
	Model         string          `json:"model" validate:"required"`
	Category      string          `json:"category"`
	Images        []string        `json:"images" validate:"dive,http_url"`
	Color         string          `json:"color"`
	Price         decimal.Decimal `json:"price"`
	Parameters    []string        `json:"parameters"`
	CartonInfo    string          `json:"cartonInfo"`
	StockQuantity int             `json:"stockQuantity"`
}

// Thumbnail returns the first image url, or "" when the product has none.
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Clone returns a deep copy that shares no slices with p.
func (p Product) Clone() Product {
	c := p
	if p.Images != nil {
		c.Images = append([]string(nil), p.Images...)
	}
	if p.Parameters != nil {
		c.Parameters = append([]string(nil), p.Parameters...)
	}
	return c
}

// UnmarshalJSON accepts stock quantities stored as numbers or strings, as
// older persisted blobs carry either form.
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	aux := struct {
		*alias
		StockQuantity json.RawMessage `json:"stockQuantity"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.StockQuantity = CoerceStock(aux.StockQuantity)
	return nil
}

// CoerceStock converts a raw JSON stock value into a non-negative integer.
// Anything non-numeric becomes 0.
func CoerceStock(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0
	}
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Trunc(f))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// coerce applies the load-time repairs: trimmed id and model, each filling
// the other, and stock floored at zero. It fails only when the product has
// no identity at all.
func coerce(p Product) (Product, error) {
	p = p.Clone()
	p.ID = strings.TrimSpace(p.ID)
	p.Model = strings.TrimSpace(p.Model)
	if p.ID == "" {
		p.ID = p.Model
	}
	if p.Model == "" {
		p.Model = p.ID
	}
	if p.ID == "" {
		return Product{}, domain.NewRuleError("id", ErrMissingID, "")
	}
	if p.StockQuantity < 0 {
		p.StockQuantity = 0
	}
	return p, nil
}

// normalize coerces p and then checks the rules an edit must satisfy.
func normalize(p Product) (Product, error) {
	p, err := coerce(p)
	if err != nil {
		return Product{}, err
	}
	if p.Price.IsNegative() {
		return Product{}, domain.NewRuleError("price", ErrInvalidPrice, p.Price.String())
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Tag() == "http_url" {
				return Product{}, domain.NewRuleError(fe.Field(), ErrInvalidImage, fe.Value())
			}
			return Product{}, &domain.ValidationError{Field: fe.Field(), Reason: fe.Tag(), Value: fe.Value()}
		}
		return Product{}, err
	}
	return p, nil
}

func validImageURL(url string) bool {
	return validate.Var(url, "required,http_url") == nil
}
