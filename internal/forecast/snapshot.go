package forecast

import "time"

// Location is a geocoded place a market question refers to.
type Location struct {
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
}

// Label renders "City, Country" for rationale strings.
func (l Location) Label() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// Snapshot is the hourly forecast for one location, immutable per scan
// cycle. The series are parallel to Times; a series the upstream did
// not return is left empty, which the estimator treats as reduced data
// completeness rather than an error.
type Snapshot struct {
	Location   Location
	FetchedAt  time.Time
	Times      []time.Time
	TempsC     []float64
	PrecipProb []float64 // percent, 0..100
	WindKmh    []float64
}

// Complete reports whether every hourly series is populated.
func (s *Snapshot) Complete() bool {
	n := len(s.Times)
	return n > 0 && len(s.TempsC) == n && len(s.PrecipProb) == n && len(s.WindKmh) == n
}
