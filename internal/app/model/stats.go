package model

// StatsSnapshot is the click statistics the provider reports for one link.
// A link without traffic has TotalViews == 0 and no breakdowns.
type StatsSnapshot struct {
	TotalViews   int              `json:"total_views"`
	Demographics []DemographicBin `json:"demographics,omitempty"`
	Regions      []RegionViews    `json:"regions,omitempty"`
	Cities       []CityViews      `json:"cities,omitempty"`
}

// Sex values used in DemographicBin.
const (
	SexMale   = "male"
	SexFemale = "female"
)

type DemographicBin struct {
	AgeBracket string `json:"age_bracket"`
	Sex        string `json:"sex"`
	Views      int    `json:"views"`
}

type RegionViews struct {
	RegionID int `json:"region_id"`
	Views    int `json:"views"`
}

type CityViews struct {
	CityID int `json:"city_id"`
	Views  int `json:"views"`
}

// Empty reports whether the provider has no data for the link yet.
func (s *StatsSnapshot) Empty() bool {
	return s == nil || s.TotalViews == 0
}
