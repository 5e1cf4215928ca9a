// Package codes maps HS6 commodity codes to the categories used in the charts.
//
// Specific labels (Wheat, Coal, Sunflower oil and so on) come from hand-curated
// dictionaries, codes inside a curated chapter get an "Other ..." label, and every
// remaining code falls back to its broad economic category (BEC).
package codes

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"tradeimpact/internal/rawdata"
)

const (
	OtherCereals = "Other cereals"
	OtherFuels   = "Other fuels"
	OtherOils    = "Other oils and fats"
	SteelAndIron = "Steel and Iron"
	WeaponsLabel = "Weapons, Firearms, Ammunition"
	PotashLabel  = "Potash"
)

// Dictionary maps a normalized HS6 code to a label.
type Dictionary map[string]string

// Product is one row of the product-code reference table.
type Product struct {
	Code string
	BEC  string
}

type codeRange struct {
	from, to int
}

func (r codeRange) contains(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil {
		return false
	}
	return n >= r.from && n <= r.to
}

var (
	cerealsRange = codeRange{100111, 100899}
	fuelsRange   = codeRange{270000, 279999}
	oilsRange    = codeRange{150000, 159999}
	steelRange   = codeRange{720000, 729999}
	weaponsRange = codeRange{930000, 939999}
)

// Normalize trims a code and left-pads it to six digits.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if len(code) < 6 {
		if _, err := strconv.Atoi(code); err == nil {
			return strings.Repeat("0", 6-len(code)) + code
		}
	}
	return code
}

func Cereals(observed []string) Dictionary {
	return withOther(Dictionary{
		"100111": "Wheat",
		"100119": "Wheat",
		"100191": "Wheat",
		"100199": "Wheat",
		"100310": "Barley",
		"100390": "Barley",
		"100510": "Maize",
		"100590": "Maize",
	}, observed, cerealsRange, OtherCereals)
}

func Fuels(observed []string) Dictionary {
	return withOther(Dictionary{
		"270111": "Coal",
		"270112": "Coal",
		"270119": "Coal",
		"270900": "Petroleum oils",
		"271000": "Petroleum oils",
		"271111": "Gas",
		"271112": "Gas",
		"271113": "Gas",
		"271114": "Gas",
		"271119": "Gas",
		"271121": "Gas",
		"271129": "Gas",
	}, observed, fuelsRange, OtherFuels)
}

func VegetableOils(observed []string) Dictionary {
	return withOther(Dictionary{
		"151211": "Sunflower oil",
		"151219": "Sunflower oil",
	}, observed, oilsRange, OtherOils)
}

func Potash() Dictionary {
	return Dictionary{
		"310420": PotashLabel,
		"310430": PotashLabel,
		"310490": PotashLabel,
		"281520": PotashLabel,
		"310520": PotashLabel,
		"252910": PotashLabel,
	}
}

func Steel(products []Product) Dictionary {
	return fromProducts(products, steelRange, SteelAndIron)
}

func Weapons(products []Product) Dictionary {
	return fromProducts(products, weaponsRange, WeaponsLabel)
}

func withOther(curated Dictionary, observed []string, r codeRange, label string) Dictionary {
	for _, code := range observed {
		code = Normalize(code)
		if _, ok := curated[code]; ok {
			continue
		}
		if r.contains(code) {
			curated[code] = label
		}
	}
	return curated
}

func fromProducts(products []Product, r codeRange, label string) Dictionary {
	out := make(Dictionary)
	for _, product := range products {
		if r.contains(product.Code) {
			out[product.Code] = label
		}
	}
	return out
}

var becNames = map[string]string{
	"1":   "Food and beverages",
	"11":  "Food and beverages",
	"111": "Food and beverages",
	"112": "Food and beverages",
	"12":  "Food and beverages",
	"121": "Food and beverages",
	"122": "Food and beverages",
	"2":   "Industrial Supplies",
	"21":  "Industrial Supplies",
	"22":  "Industrial Supplies",
	"3":   "Fuels and Lubricants",
	"31":  "Fuels and Lubricants",
	"32":  "Fuels and Lubricants",
	"321": "Fuels and Lubricants",
	"322": "Fuels and Lubricants",
	"4":   "Capital goods",
	"41":  "Capital goods",
	"42":  "Capital goods",
	"5":   "Transport equipment",
	"51":  "Transport equipment",
	"52":  "Transport equipment",
	"521": "Transport equipment",
	"522": "Transport equipment",
	"53":  "Transport equipment",
	"6":   "Consumption goods n.e.s",
	"61":  "Consumption goods n.e.s",
	"62":  "Consumption goods n.e.s",
	"63":  "Consumption goods n.e.s",
	"7":   "Goods not specified",
}

// BECName returns the broad category name for a BEC code, or "" if unknown.
func BECName(code string) string {
	return becNames[strings.TrimSpace(code)]
}

// LoadProducts reads product_codes.csv (code, bec).
func LoadProducts(r io.Reader) ([]Product, error) {
	return loadProducts(r, "code", "bec")
}

// LoadHSBEC reads the HS 2017 to BEC correspondence (HS 2017, BEC).
func LoadHSBEC(r io.Reader) ([]Product, error) {
	return loadProducts(r, "HS 2017", "BEC")
}

func loadProducts(r io.Reader, codeColumn, becColumn string) ([]Product, error) {
	table, err := rawdata.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if err := table.Require(codeColumn, becColumn); err != nil {
		return nil, fmt.Errorf("codes: %w", err)
	}
	products := make([]Product, 0, len(table.Records))
	for _, record := range table.Records {
		code := Normalize(table.Get(record, codeColumn))
		if code == "" {
			continue
		}
		products = append(products, Product{Code: code, BEC: table.Get(record, becColumn)})
	}
	return products, nil
}

// Classification resolves codes to a broad (BEC) and a detailed category.
type Classification struct {
	broad    map[string]string
	detailed map[string]string
}

// Classify builds the lookups for the codes observed in a dataset. Curated
// dictionaries are merged first, so a code that also has a BEC entry keeps its
// specific label.
func Classify(observed []string, products []Product) Classification {
	detailed := make(map[string]string)
	for _, dict := range []Dictionary{
		Cereals(observed),
		Fuels(observed),
		VegetableOils(observed),
		Steel(products),
		Weapons(products),
		Potash(),
	} {
		for code, label := range dict {
			if _, ok := detailed[code]; !ok {
				detailed[code] = label
			}
		}
	}

	broad := make(map[string]string, len(products))
	for _, product := range products {
		name := BECName(product.BEC)
		broad[product.Code] = name
		if _, ok := detailed[product.Code]; !ok {
			detailed[product.Code] = name
		}
	}
	return Classification{broad: broad, detailed: detailed}
}

// Broad returns the BEC name of code, "" when unknown.
func (c Classification) Broad(code string) string {
	return c.broad[Normalize(code)]
}

// Detailed returns the specific label of code, falling back to its BEC name.
func (c Classification) Detailed(code string) string {
	return c.detailed[Normalize(code)]
}

// Len is the number of codes with a detailed label.
func (c Classification) Len() int {
	return len(c.detailed)
}
