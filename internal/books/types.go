package books

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("books: not found")
	ErrInvalidInput = errors.New("books: invalid input")
)

// Revenue is one day's sales entry with its VAT breakdown (two rates).
// Dates are stored as YYYY-MM-DD strings; amounts are euros with two
// decimals, matching the stored numeric(10,2) columns.
type Revenue struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Base20    float64   `json:"base20"`
	TVA20     float64   `json:"tva20"`
	Base55    float64   `json:"base5_5"`
	TVA55     float64   `json:"tva5_5"`
	HT        float64   `json:"ht"`
	TTC       float64   `json:"ttc"`
	CreatedAt time.Time `json:"created_at"`
}

// Purchase is one stock/expense entry including shipping.
type Purchase struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	PriceHT     float64   `json:"price_ht"`
	TVA         float64   `json:"tva"`
	ShippingFee float64   `json:"shipping_fee"`
	TTC         float64   `json:"ttc"`
	CreatedAt   time.Time `json:"created_at"`
}

const dateLayout = "2006-01-02"

// ValidateDate checks the YYYY-MM-DD entry date format.
func ValidateDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be in YYYY-MM-DD format", ErrInvalidInput)
	}
	return nil
}

// ValidateMonth checks the YYYY-MM filter format.
func ValidateMonth(month string) error {
	if _, err := time.Parse("2006-01", month); err != nil {
		return fmt.Errorf("%w: month must be in YYYY-MM format", ErrInvalidInput)
	}
	return nil
}

// Validate checks a revenue entry before persistence.
func (r *Revenue) Validate() error {
	if err := ValidateDate(r.Date); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"base20": r.Base20, "tva20": r.TVA20,
		"base5_5": r.Base55, "tva5_5": r.TVA55,
		"ht": r.HT, "ttc": r.TTC,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidInput, name)
		}
	}
	return nil
}

// Validate checks a purchase entry before persistence.
func (p *Purchase) Validate() error {
	if err := ValidateDate(p.Date); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"price_ht": p.PriceHT, "tva": p.TVA,
		"shipping_fee": p.ShippingFee, "ttc": p.TTC,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidInput, name)
		}
	}
	return nil
}
