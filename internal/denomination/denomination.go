// Package denomination converts raw asset amounts into display units.
package denomination

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Denomination is a display unit of an asset.
type Denomination struct {
	// Price is how many units of this denomination one unit of the asset is worth.
	Price        float64 `json:"price" yaml:"price"`
	Sign         string  `json:"sign" yaml:"sign"`
	Precision    int32   `json:"precision" yaml:"precision"`
	PrecisionMax int32   `json:"precisionMax" yaml:"precision_max"`
}

// Values are the derived amounts of one payment in one denomination.
type Values struct {
	Denomination Denomination    `json:"denomination"`
	Direction    string          `json:"direction,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Total        decimal.Decimal `json:"total"`
	Fees         decimal.Decimal `json:"fees"`
}

// Formatted holds the display strings of Values.
type Formatted struct {
	Amount string `json:"amount"`
	Total  string `json:"total"`
	Fees   string `json:"fees"`
}

// FormatOptions tweak Stringify.
type FormatOptions struct {
	OmitDirection bool
	OmitSign      bool
}

// Round rounds value to precision decimals. While the result is a whole
// number it retries one decimal finer, up to precisionMax, so that values
// like 0.0004 are not flattened to 0 while 12.5 stays 12.5.
func Round(value float64, precision, precisionMax int32) decimal.Decimal {
	return round(decimal.NewFromFloat(value), precision, precisionMax)
}

func round(d decimal.Decimal, precision, precisionMax int32) decimal.Decimal {
	if precision > precisionMax {
		precision = precisionMax
	}
	rounded := d.Round(precision)
	if rounded.IsInteger() && precision < precisionMax {
		return round(d, precision+1, precisionMax)
	}
	return rounded
}

// Convert prices amount in this denomination and rounds it.
func (d Denomination) Convert(amount float64) decimal.Decimal {
	price := decimal.NewFromFloat(d.Price)
	if d.Price == 0 {
		price = decimal.NewFromInt(1)
	}
	return round(decimal.NewFromFloat(amount).Mul(price), d.Precision, d.PrecisionMax)
}

// Derive computes the amount, fees, and total of a payment. Outgoing totals
// include fees; incoming totals are what was received.
func (d Denomination) Derive(amount, fees float64, direction string) Values {
	a := d.Convert(amount)
	f := d.Convert(fees)
	total := a
	if direction == "outgoing" {
		total = d.Convert(amount + fees)
	}
	return Values{
		Denomination: d,
		Direction:    direction,
		Amount:       a,
		Total:        total,
		Fees:         f,
	}
}

// Strings formats the values for display.
func (v Values) Strings(opts FormatOptions) Formatted {
	return Formatted{
		Amount: v.Denomination.Stringify(v.Amount, v.Direction, opts),
		Total:  v.Denomination.Stringify(v.Total, v.Direction, opts),
		Fees:   v.Denomination.Stringify(v.Fees, "", FormatOptions{OmitDirection: true, OmitSign: opts.OmitSign}),
	}
}

// Stringify formats value with this denomination's sign and precision.
func (d Denomination) Stringify(value decimal.Decimal, direction string, opts FormatOptions) string {
	sign := d.Sign
	if opts.OmitSign {
		sign = ""
	}
	return Stringify(value, sign, d.PrecisionMax, direction, opts.OmitDirection)
}

// Stringify renders sign, then a +/- marker for non-zero incoming/outgoing
// values unless omitDirection is set, then the absolute value printed with
// precisionMax decimals and trailing zeros trimmed.
func Stringify(value decimal.Decimal, sign string, precisionMax int32, direction string, omitDirection bool) string {
	if precisionMax < 0 {
		precisionMax = 0
	}
	marker := ""
	if !omitDirection && !value.IsZero() {
		switch direction {
		case "incoming":
			marker = "+"
		case "outgoing":
			marker = "-"
		}
	}
	if marker == "" && value.IsNegative() {
		marker = "-"
	}
	return sign + marker + trimZeros(value.Abs().StringFixed(precisionMax))
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
