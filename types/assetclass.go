package types

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Global error declarations.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("invalid transaction state transition")
)

type AssetCategory string

const (
	CategoryEquity   AssetCategory = "equity"
	CategoryETC      AssetCategory = "ETC"
	CategoryETF      AssetCategory = "ETF"
	CategoryCurrency AssetCategory = "currency"
)

// AssetClass carries the static trading characteristics shared by every
// asset of a category: commission rates, annual fee, capital-gains tax
// rate and dividend eligibility. Instances are immutable and shared by
// reference across assets.
type AssetClass struct {
	Category      AssetCategory
	BuyCommission decimal.Decimal
	AnnualFee     decimal.Decimal
	TaxRate       decimal.Decimal

	hasDividends bool
}

// DefaultTaxRate is the capital-gains tax rate applied when a class does
// not override it.
var DefaultTaxRate = decimal.NewFromFloat(0.26)

var one = decimal.NewFromInt(1)

// NewAssetClass validates and builds an AssetClass. Rates must be in [0, 1).
func NewAssetClass(category AssetCategory, buyCommission, annualFee, taxRate decimal.Decimal) (*AssetClass, error) {
	switch category {
	case CategoryEquity, CategoryETC, CategoryETF, CategoryCurrency:
	default:
		return nil, fmt.Errorf("%w: unknown asset category %q", ErrInvalidArgument, category)
	}
	for _, rate := range []decimal.Decimal{buyCommission, annualFee, taxRate} {
		if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
			return nil, fmt.Errorf("%w: rate %s outside [0,1)", ErrInvalidArgument, rate)
		}
	}
	return &AssetClass{
		Category:      category,
		BuyCommission: buyCommission,
		AnnualFee:     annualFee,
		TaxRate:       taxRate,
		hasDividends:  category == CategoryEquity || category == CategoryETF,
	}, nil
}

// HasDividends reports whether assets of this class pay dividends.
func (c *AssetClass) HasDividends() bool { return c.hasDividends }

func (c *AssetClass) String() string { return string(c.Category) }

func mustAssetClass(category AssetCategory, buyCommission float64) *AssetClass {
	c, err := NewAssetClass(category, decimal.NewFromFloat(buyCommission), decimal.Zero, DefaultTaxRate)
	if err != nil {
		panic(err)
	}
	return c
}

// The asset classes in scope. Shared by reference, never mutated.
var (
	Equity   = mustAssetClass(CategoryEquity, 0.005)
	ETC      = mustAssetClass(CategoryETC, 0.005)
	ETF      = mustAssetClass(CategoryETF, 0.005)
	Currency = mustAssetClass(CategoryCurrency, 0.001)
)
