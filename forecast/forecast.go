package forecast

import (
	"errors"
	"fmt"
)

// Kind selects how the records of a Report are shaped and rendered
type Kind int

const (
	// KindDaily reports carry hourly sequences aggregated per day
	KindDaily Kind = iota
	// KindInstant reports carry a single reading per record
	KindInstant
)

// DayAggregate is one day of hourly values returned by the day-based endpoints
type DayAggregate struct {
	FoundCountry string    `json:"found_country"`
	FoundCity    string    `json:"found_city"`
	Date         string    `json:"date"` // YYYY-MM-DD
	TempC        []float64 `json:"temp_c"`
	Cloud        []float64 `json:"cloud"`
	Humidity     []float64 `json:"humidity"`
	ChanceOfRain []float64 `json:"chance_of_rain"`
}

// InstantReading is a single point-in-time reading returned by the "now" endpoint
type InstantReading struct {
	FoundCountry string  `json:"found_country"`
	FoundCity    string  `json:"found_city"`
	Date         string  `json:"date"` // YYYY-MM-DD
	TempC        float64 `json:"temp_c"`
	Cloud        float64 `json:"cloud"`
	Humidity     float64 `json:"humidity"`
	ChanceOfRain float64 `json:"chance_of_rain"`
}

// Report is a forecast for the city the user asked about.
// Only the slice matching Kind is populated.
type Report struct {
	City     string
	Kind     Kind
	Days     []DayAggregate
	Readings []InstantReading
}

var errEmptySeries = errors.New("empty hourly series")

// Validate checks that all hourly sequences are present and of equal length
func (d DayAggregate) Validate() error {
	n := len(d.TempC)
	if n == 0 {
		return fmt.Errorf("day %s: %w", d.Date, errEmptySeries)
	}
	if len(d.Cloud) != n || len(d.Humidity) != n || len(d.ChanceOfRain) != n {
		return fmt.Errorf("day %s: series length mismatch (temp %d, cloud %d, humidity %d, rain %d)",
			d.Date, n, len(d.Cloud), len(d.Humidity), len(d.ChanceOfRain))
	}
	return nil
}

// Messages renders every record of the report as a separate chat message
func (r Report) Messages() []string {
	switch r.Kind {
	case KindInstant:
		out := make([]string, 0, len(r.Readings))
		for _, reading := range r.Readings {
			out = append(out, RenderInstant(r.City, reading))
		}
		return out
	default:
		out := make([]string, 0, len(r.Days))
		for _, day := range r.Days {
			out = append(out, RenderMultiHour(r.City, day))
		}
		return out
	}
}
