package denomination

import "sort"

// Well-known denomination names.
const (
	BTC  = "BTC"
	MBTC = "mBTC"
	SAT  = "SAT"
)

// Catalog maps asset -> denomination name -> denomination.
type Catalog map[string]map[string]Denomination

// DefaultCatalog returns the built-in denominations. Fiat denominations are
// added from configured prices with WithPrices.
func DefaultCatalog() Catalog {
	return Catalog{
		"BTC": {
			BTC:  {Price: 1, Sign: "BTC ", Precision: 5, PrecisionMax: 8},
			MBTC: {Price: 1e3, Sign: "mBTC ", Precision: 2, PrecisionMax: 5},
			SAT:  {Price: 1e8, Sign: "SAT ", Precision: 0, PrecisionMax: 0},
		},
	}
}

// FiatPrice is a configured exchange rate.
type FiatPrice struct {
	Price float64 `yaml:"price" json:"price"`
	Sign  string  `yaml:"sign" json:"sign"`
}

// WithPrices returns a copy of c extended with fiat denominations, two
// decimals each.
func (c Catalog) WithPrices(prices map[string]map[string]FiatPrice) Catalog {
	out := Catalog{}
	for asset, ds := range c {
		out[asset] = map[string]Denomination{}
		for name, d := range ds {
			out[asset][name] = d
		}
	}
	for asset, fiats := range prices {
		if out[asset] == nil {
			out[asset] = map[string]Denomination{}
		}
		for name, p := range fiats {
			sign := p.Sign
			if sign == "" {
				sign = name + " "
			}
			out[asset][name] = Denomination{Price: p.Price, Sign: sign, Precision: 2, PrecisionMax: 2}
		}
	}
	return out
}

// Lookup returns the named denomination of asset.
func (c Catalog) Lookup(asset, name string) (Denomination, bool) {
	d, ok := c[asset][name]
	return d, ok
}

// Names lists the denomination names of asset, sorted.
func (c Catalog) Names(asset string) []string {
	names := make([]string, 0, len(c[asset]))
	for n := range c[asset] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Fallback is used for assets the catalog does not know: the raw amount with
// up to eight decimals.
func Fallback(asset string) Denomination {
	return Denomination{Price: 1, Sign: asset + " ", Precision: 2, PrecisionMax: 8}
}
