package api

import "encoding/json"

// LayerInfo is one entry from GET /layers.
type LayerInfo struct {
	ID          int             `json:"id,omitempty"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	TableName   string          `json:"table_name,omitempty"`
	IsActive    bool            `json:"is_active"`
	MinZoom     float64         `json:"min_zoom,omitempty"`
	Style       json.RawMessage `json:"style,omitempty"`
}

type layersResponse struct {
	Layers []LayerInfo `json:"layers"`
}

// SearchResult is one geocoder hit from GET /search.
type SearchResult struct {
	DisplayName string   `json:"display_name"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	BBox        []string `json:"bbox,omitempty"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// ParcelDetail is the full record from GET /parcel/{id}.
type ParcelDetail struct {
	ID          int64    `json:"id"`
	NationalRef string   `json:"national_ref"`
	InspireID   string   `json:"inspire_id"`
	AreaSqm     *float64 `json:"area_sqm"`
	AreaAcres   *float64 `json:"area_acres"`
	Type        string   `json:"type"`
}

// SoldStats is the aggregate from GET /sold_stats for a disc.
type SoldStats struct {
	Count                 int            `json:"count"`
	RadiusM               float64        `json:"radius_m"`
	AvgSalePrice          float64        `json:"avg_sale_price"`
	MedianSalePrice       float64        `json:"median_sale_price"`
	MinSalePrice          float64        `json:"min_sale_price"`
	MaxSalePrice          float64        `json:"max_sale_price"`
	StddevSalePrice       float64        `json:"stddev_sale_price"`
	AvgAskingPrice        float64        `json:"avg_asking_price"`
	AvgPricePerSqm        float64        `json:"avg_price_per_sqm"`
	AvgFloorAreaM2        float64        `json:"avg_floor_area_m2"`
	AvgBeds               float64        `json:"avg_beds"`
	AvgBaths              float64        `json:"avg_baths"`
	PropertyTypeBreakdown map[string]int `json:"property_type_breakdown"`
}

// CensusStats is the aggregate demographic payload from GET /census_stats.
type CensusStats struct {
	Population       int            `json:"population"`
	Density          float64        `json:"population_density"`
	Households       int            `json:"households"`
	AgeBands         map[string]int `json:"age_bands,omitempty"`
	TenureSplit      map[string]int `json:"tenure_split,omitempty"`
	VacancyRate      float64        `json:"vacancy_rate"`
	EmploymentRate   float64        `json:"employment_rate"`
	ThirdLevelRate   float64        `json:"third_level_rate"`
	WorkFromHomeRate float64        `json:"work_from_home_rate"`
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn in the conversation sent to POST /ai/chat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// Assistant response type tags.
const (
	ChatTypeExplore = "explore"
	ChatTypeClarify = "clarify"
)

// ChatResponse is the tagged payload returned by the assistant endpoint.
type ChatResponse struct {
	Type        string         `json:"type"`
	Title       string         `json:"title,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Message     string         `json:"message,omitempty"`
	Results     []RankedResult `json:"results,omitempty"`
	FollowUps   []string       `json:"follow_ups,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	QueryStats  map[string]any `json:"query_stats,omitempty"`
}

// Entity type tags carried by ranked results.
const (
	EntitySoldProperty    = "sold_property"
	EntityFreeholdParcel  = "freehold_parcel"
	EntityLeaseholdParcel = "leasehold_parcel"
	EntityRZLTSite        = "rzlt_site"
	EntityPlanningApp     = "planning_application"
	EntityOther           = "other"
)

// RankedResult is one scored entity from an explore response. Beyond the
// fixed envelope every result carries type-specific attributes, kept in
// Attrs so detail templates can reach them by name.
type RankedResult struct {
	EntityType        string
	Score             float64
	Lng               float64
	Lat               float64
	OpportunityReason string
	Attrs             map[string]any
}

// UnmarshalJSON splits the fixed envelope from the type-specific attributes.
func (r *RankedResult) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["entity_type"].(string); ok {
		r.EntityType = v
	}
	if v, ok := raw["score"].(float64); ok {
		r.Score = v
	}
	if v, ok := raw["lng"].(float64); ok {
		r.Lng = v
	}
	if v, ok := raw["lat"].(float64); ok {
		r.Lat = v
	}
	if v, ok := raw["opportunity_reason"].(string); ok {
		r.OpportunityReason = v
	}
	for _, k := range []string{"entity_type", "score", "lng", "lat", "opportunity_reason"} {
		delete(raw, k)
	}
	r.Attrs = raw
	return nil
}

// MarshalJSON flattens Attrs back alongside the envelope so persisted
// result sets round-trip.
func (r RankedResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Attrs)+5)
	for k, v := range r.Attrs {
		out[k] = v
	}
	out["entity_type"] = r.EntityType
	out["score"] = r.Score
	out["lng"] = r.Lng
	out["lat"] = r.Lat
	if r.OpportunityReason != "" {
		out["opportunity_reason"] = r.OpportunityReason
	}
	return json.Marshal(out)
}

// StringAttr returns a type-specific attribute as a string, or "" when the
// attribute is absent or not a string.
func (r RankedResult) StringAttr(key string) string {
	v, ok := r.Attrs[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// FloatAttr returns a numeric attribute, reporting whether it was present.
func (r RankedResult) FloatAttr(key string) (float64, bool) {
	v, ok := r.Attrs[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
