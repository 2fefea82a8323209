// Package detail builds the labeled rows shown in the detail panel. Each
// entity type has its own template mapping a fixed set of fields to rows
// with type-specific formatting; missing or placeholder values always render
// as an explicit glyph, never blank.
package detail

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/john-mcenroe/landos/internal/api"
)

// Placeholder is rendered for any absent or null-marked field.
const Placeholder = "—"

// nullMarker is the literal string some backend fields carry for NULL.
const nullMarker = "(null)"

// Tone hints how a value should be colored by the panel.
type Tone int

const (
	ToneNone Tone = iota
	ToneAccent
	ToneGood
	ToneBad
	ToneMuted
)

// Row is one labeled line in the detail panel.
type Row struct {
	Label string
	Value string
	Tone  Tone
	Large bool // emphasized leading value
}

// Panel is the surface rows are rendered to.
type Panel interface {
	ShowDetail(title string, rows []Row)
	Close()
}

// String returns a field as display text, mapping nil, absence and the
// literal null marker to the placeholder glyph.
func String(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return Placeholder
	}
	var s string
	switch n := v.(type) {
	case float64:
		// JSON decoding delivers every number as float64; %v would render
		// large ids in scientific notation.
		s = strconv.FormatFloat(n, 'f', -1, 64)
	default:
		s = fmt.Sprintf("%v", v)
	}
	if s == "" || s == nullMarker {
		return Placeholder
	}
	return s
}

func float(props map[string]any, key string) (float64, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// groupThousands renders 1234567 as "1,234,567".
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, d := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Euro formats a monetary amount with grouping: €450,000.
func Euro(v float64) string {
	return "€" + groupThousands(int64(math.Round(v)))
}

// Number formats a float with grouping and up to one decimal.
func Number(v float64) string {
	whole := math.Trunc(v)
	frac := math.Round((v - whole) * 10)
	if frac == 0 {
		return groupThousands(int64(whole))
	}
	if frac == 10 {
		return groupThousands(int64(whole) + 1)
	}
	return fmt.Sprintf("%s.%d", groupThousands(int64(whole)), int(frac))
}

// CompactDate reformats the backend's YYYYMMDD form to DD/MM/YYYY.
func CompactDate(d string) string {
	if d == "" || d == nullMarker || len(d) < 8 {
		return Placeholder
	}
	return d[6:8] + "/" + d[4:6] + "/" + d[0:4]
}

func euroField(props map[string]any, key string) string {
	if v, ok := float(props, key); ok && v != 0 {
		return Euro(v)
	}
	return Placeholder
}

// ParcelRows renders a cadastral parcel from its full detail record.
func ParcelRows(d *api.ParcelDetail) []Row {
	props := map[string]any{
		"id":           d.ID,
		"national_ref": d.NationalRef,
		"inspire_id":   d.InspireID,
		"type":         d.Type,
	}
	if d.AreaSqm != nil {
		props["area_sqm"] = *d.AreaSqm
	}
	if d.AreaAcres != nil {
		props["area_acres"] = *d.AreaAcres
	}
	return ParcelRowsFromProps(props)
}

// ParcelRowsFromProps renders a parcel from feature properties, used when
// the detail fetch fails.
func ParcelRowsFromProps(props map[string]any) []Row {
	area := Placeholder
	if v, ok := float(props, "area_sqm"); ok {
		area = Number(v) + " m²"
	}
	acres := Placeholder
	if v, ok := float(props, "area_acres"); ok {
		acres = Number(v) + " ac"
	}

	parcelType := String(props, "type")
	typeTone := ToneAccent
	if parcelType == "leasehold" {
		typeTone = ToneGood
	}
	if parcelType != Placeholder {
		parcelType = strings.ToUpper(parcelType[:1]) + parcelType[1:]
	}

	return []Row{
		{Label: "Area", Value: area, Large: true},
		{Label: "Acres", Value: acres},
		{Label: "National Cadastral Ref", Value: String(props, "national_ref")},
		{Label: "INSPIRE ID", Value: String(props, "inspire_id")},
		{Label: "Parcel Type", Value: parcelType, Tone: typeTone},
		{Label: "Internal ID", Value: String(props, "id")},
	}
}

// PlanningRows renders a planning application.
func PlanningRows(props map[string]any) []Row {
	decision := String(props, "decision")
	decisionTone := ToneMuted
	switch {
	case strings.Contains(strings.ToUpper(decision), "GRANT"):
		decisionTone = ToneGood
	case strings.Contains(strings.ToUpper(decision), "REFUS"):
		decisionTone = ToneBad
	}

	return []Row{
		{Label: "Planning Ref", Value: String(props, "plan_ref"), Tone: ToneAccent, Large: true},
		{Label: "Decision", Value: decision, Tone: decisionTone},
		{Label: "Stage", Value: String(props, "stage")},
		{Label: "Location", Value: String(props, "location")},
		{Label: "Description", Value: String(props, "descrptn")},
		{Label: "Registered", Value: CompactDate(String(props, "reg_date"))},
		{Label: "Decision Date", Value: CompactDate(String(props, "dec_date"))},
		{Label: "Planning Authority", Value: String(props, "plan_auth")},
		{Label: "More Info", Value: String(props, "more_info")},
	}
}

// SoldRows renders a sold property.
func SoldRows(props map[string]any) []Row {
	rows := []Row{
		{Label: "Sale Price", Value: euroField(props, "sale_price"), Tone: ToneBad, Large: true},
	}

	sale, haveSale := float(props, "sale_price")
	asking, haveAsking := float(props, "asking_price")
	if haveSale && haveAsking && asking != 0 {
		delta := sale - asking
		tone := ToneGood
		sign := ""
		if delta > 0 {
			tone = ToneBad
			sign = "+"
		}
		rows = append(rows, Row{
			Label: "vs Asking",
			Value: fmt.Sprintf("%s%s (asking %s)", sign, Euro(delta), Euro(asking)),
			Tone:  tone,
		})
	} else {
		rows = append(rows, Row{Label: "Asking Price", Value: euroField(props, "asking_price")})
	}

	psm := Placeholder
	if v, ok := float(props, "price_per_sqm"); ok && v != 0 {
		psm = Euro(v) + "/m²"
	}
	floorArea := Placeholder
	if v, ok := float(props, "floor_area_m2"); ok && v != 0 {
		floorArea = Number(v) + " m²"
	}

	rows = append(rows,
		Row{Label: "Price / m²", Value: psm},
		Row{Label: "Address", Value: String(props, "address")},
		Row{Label: "Beds / Baths", Value: String(props, "beds") + " bed · " + String(props, "baths") + " bath"},
		Row{Label: "Floor Area", Value: floorArea},
		Row{Label: "Property Type", Value: String(props, "property_type")},
		Row{Label: "BER", Value: String(props, "energy_rating")},
		Row{Label: "Sale Date", Value: String(props, "sale_date")},
		Row{Label: "Agent", Value: String(props, "agent_name")},
		Row{Label: "Listing", Value: String(props, "url")},
	)
	return rows
}

// RZLTRows renders a Residential Zoned Land Tax site.
func RZLTRows(props map[string]any) []Row {
	area := Placeholder
	if v, ok := float(props, "site_area"); ok && v != 0 {
		area = Number(v) + " ha"
	}
	return []Row{
		{Label: "Zone", Value: String(props, "zone_desc"), Tone: ToneAccent, Large: true},
		{Label: "GZT Zone", Value: String(props, "zone_gzt")},
		{Label: "GZT Description", Value: String(props, "gzt_desc")},
		{Label: "Site Area", Value: area},
		{Label: "Local Authority", Value: String(props, "local_authority")},
	}
}

// CensusRows renders a census small area. Rates are colored by threshold.
func CensusRows(props map[string]any) []Row {
	pop := Placeholder
	if v, ok := float(props, "population"); ok {
		pop = groupThousands(int64(v))
	}
	households := Placeholder
	if v, ok := float(props, "households"); ok {
		households = groupThousands(int64(v))
	}
	density := Placeholder
	if v, ok := float(props, "population_density"); ok {
		density = Number(v) + " /km²"
	}

	rows := []Row{
		{Label: "Small Area", Value: String(props, "sa_ref"), Tone: ToneAccent, Large: true},
		{Label: "Population", Value: pop},
		{Label: "Households", Value: households},
		{Label: "Density", Value: density},
	}
	rows = append(rows, RateRow("Vacancy Rate", props, "vacancy_rate", true))
	rows = append(rows, RateRow("Employment Rate", props, "employment_rate", false))
	return rows
}

// RateRow renders a percentage field, colored good/bad around a 10%
// threshold. badHigh marks rates where high values are the bad direction.
func RateRow(label string, props map[string]any, key string, badHigh bool) Row {
	v, ok := float(props, key)
	if !ok {
		return Row{Label: label, Value: Placeholder}
	}
	tone := ToneGood
	if (badHigh && v >= 10) || (!badHigh && v < 10) {
		tone = ToneBad
	}
	return Row{Label: label, Value: fmt.Sprintf("%.1f%%", v), Tone: tone}
}

// GenericRows renders arbitrary properties sorted by key, for entity types
// with no dedicated template.
func GenericRows(props map[string]any) []Row {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, Row{Label: k, Value: String(props, k)})
	}
	if len(rows) == 0 {
		rows = append(rows, Row{Label: "Details", Value: Placeholder})
	}
	return rows
}
