package forecast

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Status is a short weather summary shown for instant readings
type Status struct {
	Emoji string
	Label string
}

var (
	StatusRain         = Status{Emoji: "🌧️", Label: "Rain"}
	StatusCloudy       = Status{Emoji: "☁️", Label: "Cloudy"}
	StatusPartlyCloudy = Status{Emoji: "⛅", Label: "Partly cloudy"}
	StatusClear        = Status{Emoji: "☀️", Label: "Clear"}
)

// ClassifyStatus picks a status from rain chance and cloud cover.
// Bands are checked in order and all thresholds are strict.
func ClassifyStatus(rainChance, cloud float64) Status {
	switch {
	case rainChance > 50:
		return StatusRain
	case cloud > 70:
		return StatusCloudy
	case cloud > 30:
		return StatusPartlyCloudy
	default:
		return StatusClear
	}
}

// RenderMultiHour summarises a day of hourly values
func RenderMultiHour(city string, day DayAggregate) string {
	minTemp, maxTemp := minMax(day.TempC)
	_, maxRain := minMax(day.ChanceOfRain)

	var sb strings.Builder
	writeHeader(&sb, city, day.FoundCity, day.FoundCountry)
	fmt.Fprintf(&sb, "📅 %s from 00:00 to 23:00:\n", formatDate(day.Date))
	fmt.Fprintf(&sb, "🌡  Temperature: %.1f°C...%.1f°C (avg %.1f°C)\n", minTemp, maxTemp, mean(day.TempC))
	fmt.Fprintf(&sb, "☁️  Cloudiness: %.0f%%\n", mean(day.Cloud))
	fmt.Fprintf(&sb, "💧 Humidity: %.0f%%\n", mean(day.Humidity))
	fmt.Fprintf(&sb, "🌧  Chance of rain: %.0f%%\n", maxRain)
	return sb.String()
}

// RenderInstant formats a single reading together with its status
func RenderInstant(city string, reading InstantReading) string {
	status := ClassifyStatus(reading.ChanceOfRain, reading.Cloud)

	var sb strings.Builder
	writeHeader(&sb, city, reading.FoundCity, reading.FoundCountry)
	fmt.Fprintf(&sb, "📅 %s\n", formatDate(reading.Date))
	fmt.Fprintf(&sb, "🌡  Temperature: %.1f°C\n", reading.TempC)
	fmt.Fprintf(&sb, "☁️  Cloudiness: %s%%\n", plain(reading.Cloud))
	fmt.Fprintf(&sb, "💧 Humidity: %s%%\n", plain(reading.Humidity))
	fmt.Fprintf(&sb, "🌧  Chance of rain: %s%%\n", plain(reading.ChanceOfRain))
	fmt.Fprintf(&sb, "📊 Conditions: %s %s", status.Emoji, status.Label)
	return sb.String()
}

func writeHeader(sb *strings.Builder, city, foundCity, foundCountry string) {
	fmt.Fprintf(sb, "Your query: %s\n", city)
	fmt.Fprintf(sb, "Found city %s in %s.\n", foundCity, foundCountry)
}

// formatDate turns YYYY-MM-DD into DD.MM.YYYY, leaving unparseable input as is
func formatDate(date string) string {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return parsed.Format("02.01.2006")
}

// plain prints a value without rounding or trailing zeros
func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func minMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return slices.Min(values), slices.Max(values)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
