// Package reference holds country reference data: ISO3 codes, short names,
// continents, EU27 and G20 membership, and the name variants used by FAO, the World
// Bank and the IDS extracts.
package reference

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tradeimpact/internal/memo"
	"tradeimpact/internal/model"
	"tradeimpact/internal/rawdata"
)

// NotFound is the name returned for codes that have no reference entry.
const NotFound = "not found"

//go:embed countries.csv
var countriesCSV []byte

type Table struct {
	byISO  map[string]model.Country
	byName map[string]string
}

var countries = memo.NewOnce(func() (*Table, error) {
	return Parse(bytes.NewReader(countriesCSV))
})

// Countries returns the embedded country table. It is parsed on first use.
func Countries() *Table {
	table, err := countries.Get()
	if err != nil {
		panic(fmt.Sprintf("reference: embedded countries table: %v", err))
	}
	return table
}

// Parse reads a countries table (iso3,name,continent,eu27,g20,aliases).
func Parse(r io.Reader) (*Table, error) {
	table, err := rawdata.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if err := table.Require("iso3", "name", "continent"); err != nil {
		return nil, err
	}

	out := &Table{
		byISO:  make(map[string]model.Country, len(table.Records)),
		byName: make(map[string]string, len(table.Records)*2),
	}
	for _, record := range table.Records {
		country := model.Country{
			ISO3:      strings.ToUpper(table.Get(record, "iso3")),
			Name:      table.Get(record, "name"),
			Continent: table.Get(record, "continent"),
			EU27:      table.Get(record, "eu27") == "1",
			G20:       table.Get(record, "g20") == "1",
		}
		if country.ISO3 == "" {
			continue
		}
		if aliases := table.Get(record, "aliases"); aliases != "" {
			for _, alias := range strings.Split(aliases, "|") {
				if alias = strings.TrimSpace(alias); alias != "" {
					country.Aliases = append(country.Aliases, alias)
				}
			}
		}
		out.byISO[country.ISO3] = country
		out.byName[normalizeName(country.Name)] = country.ISO3
		out.byName[normalizeName(country.ISO3)] = country.ISO3
		for _, alias := range country.Aliases {
			out.byName[normalizeName(alias)] = country.ISO3
		}
	}
	return out, nil
}

func (t *Table) Lookup(iso3 string) (model.Country, bool) {
	country, ok := t.byISO[strings.ToUpper(strings.TrimSpace(iso3))]
	return country, ok
}

// Continent returns "" for unknown codes.
func (t *Table) Continent(iso3 string) string {
	country, _ := t.Lookup(iso3)
	return country.Continent
}

// ShortName returns notFound for unknown codes.
func (t *Table) ShortName(iso3, notFound string) string {
	country, ok := t.Lookup(iso3)
	if !ok {
		return notFound
	}
	return country.Name
}

func (t *Table) EU27(iso3 string) bool {
	country, _ := t.Lookup(iso3)
	return country.EU27
}

// G20 lists the member countries, sorted.
func (t *Table) G20() []string {
	members := make([]string, 0, 20)
	for iso3, country := range t.byISO {
		if country.G20 {
			members = append(members, iso3)
		}
	}
	sort.Strings(members)
	return members
}

// ByContinent lists the ISO3 codes on continent, sorted.
func (t *Table) ByContinent(continent string) []string {
	out := make([]string, 0)
	for iso3, country := range t.byISO {
		if country.Continent == continent {
			out = append(out, iso3)
		}
	}
	sort.Strings(out)
	return out
}

// ISO3FromName matches a country name or any known variant, ignoring case, accents
// and punctuation. Unknown names give "".
func (t *Table) ISO3FromName(name string) string {
	return t.byName[normalizeName(name)]
}

func normalizeName(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LoadNumericCodes reads the BACI country_codes.csv table mapping numeric country
// codes to ISO3. Rows without an ISO3 code are skipped.
func LoadNumericCodes(r io.Reader) (map[string]string, error) {
	table, err := rawdata.ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if err := table.Require("country_code", "iso_3digit_alpha"); err != nil {
		return nil, err
	}
	codes := make(map[string]string, len(table.Records))
	for _, record := range table.Records {
		code := strings.TrimLeft(table.Get(record, "country_code"), "0")
		iso3 := strings.ToUpper(table.Get(record, "iso_3digit_alpha"))
		if code == "" || iso3 == "" || iso3 == "NA" {
			continue
		}
		codes[code] = iso3
	}
	return codes, nil
}

// WriteTable is a helper for callers that want to ship the country table to an
// output directory next to chart files.
func WriteTable(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"iso3", "name", "continent", "eu27", "g20"}); err != nil {
		return err
	}
	isos := make([]string, 0, len(t.byISO))
	for iso3 := range t.byISO {
		isos = append(isos, iso3)
	}
	sort.Strings(isos)
	for _, iso3 := range isos {
		country := t.byISO[iso3]
		if err := writer.Write([]string{iso3, country.Name, country.Continent, flag(country.EU27), flag(country.G20)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func flag(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
