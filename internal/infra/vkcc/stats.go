package vkcc

import "github.com/sifan077/linkbot/internal/app/model"

// statsResponse accepts both shapes the API returns: breakdowns at the top
// level, or a "stats" array of per-interval entries with the same fields.
type statsResponse struct {
	Views     int             `json:"views"`
	SexAge    []sexAgeEntry   `json:"sex_age"`
	Countries []countryEntry  `json:"countries"`
	Cities    []cityEntry     `json:"cities"`
	Stats     []statsResponse `json:"stats"`
}

// sexAgeEntry carries either male/female counts or a single sex code with views.
type sexAgeEntry struct {
	AgeRange string `json:"age_range"`
	Male     int    `json:"male"`
	Female   int    `json:"female"`
	Sex      int    `json:"sex"`
	Views    int    `json:"views"`
}

type countryEntry struct {
	CountryID int `json:"country_id"`
	Views     int `json:"views"`
}

type cityEntry struct {
	CityID int `json:"city_id"`
	Views  int `json:"views"`
}

// sexCodeMale is the legacy sex code counted as male.
const sexCodeMale = 1

type binKey struct {
	age string
	sex string
}

type statsAccumulator struct {
	views int

	bins     []model.DemographicBin
	binIndex map[binKey]int

	regions     []model.RegionViews
	regionIndex map[int]int

	cities    []model.CityViews
	cityIndex map[int]int
}

func (r *statsResponse) snapshot() *model.StatsSnapshot {
	acc := &statsAccumulator{
		binIndex:    make(map[binKey]int),
		regionIndex: make(map[int]int),
		cityIndex:   make(map[int]int),
	}
	acc.add(r)
	for i := range r.Stats {
		acc.add(&r.Stats[i])
	}

	if acc.views == 0 {
		return &model.StatsSnapshot{}
	}
	return &model.StatsSnapshot{
		TotalViews:   acc.views,
		Demographics: acc.bins,
		Regions:      acc.regions,
		Cities:       acc.cities,
	}
}

func (a *statsAccumulator) add(r *statsResponse) {
	a.views += r.Views

	for _, e := range r.SexAge {
		age := e.AgeRange
		if age == "" {
			age = "?"
		}
		if e.Male != 0 || e.Female != 0 {
			a.addBin(age, model.SexMale, e.Male)
			a.addBin(age, model.SexFemale, e.Female)
			continue
		}
		sex := model.SexFemale
		if e.Sex == sexCodeMale {
			sex = model.SexMale
		}
		a.addBin(age, sex, e.Views)
	}

	for _, c := range r.Countries {
		if i, ok := a.regionIndex[c.CountryID]; ok {
			a.regions[i].Views += c.Views
			continue
		}
		a.regionIndex[c.CountryID] = len(a.regions)
		a.regions = append(a.regions, model.RegionViews{RegionID: c.CountryID, Views: c.Views})
	}

	for _, c := range r.Cities {
		if i, ok := a.cityIndex[c.CityID]; ok {
			a.cities[i].Views += c.Views
			continue
		}
		a.cityIndex[c.CityID] = len(a.cities)
		a.cities = append(a.cities, model.CityViews{CityID: c.CityID, Views: c.Views})
	}
}

func (a *statsAccumulator) addBin(age, sex string, views int) {
	if views == 0 {
		return
	}
	k := binKey{age, sex}
	if i, ok := a.binIndex[k]; ok {
		a.bins[i].Views += views
		return
	}
	a.binIndex[k] = len(a.bins)
	a.bins = append(a.bins, model.DemographicBin{AgeBracket: age, Sex: sex, Views: views})
}
