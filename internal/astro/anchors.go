// Package astro computes the solar anchor instants (dawn, sunrise, noon,
// sunset, dusk, midnight) that plans reference through @anchor time
// expressions, and resolves site locations from place names.
//
// Solar positions come from the astral library. High latitudes can leave
// an event undefined for a given day (midsummer sunset above the arctic
// circle); the calculation then retries the following day and finally
// falls back to a fixed average time so a plan never loses its anchors.
package astro

import (
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// Observer is a site position paired with its civil timezone.
type Observer struct {
	Latitude  float64
	Longitude float64
	Location  *time.Location
}

// Anchor names, in plan-expression spelling (@dawn, @sunset, ...).
const (
	AnchorDawn     = "dawn"
	AnchorSunrise  = "sunrise"
	AnchorNoon     = "noon"
	AnchorSunset   = "sunset"
	AnchorDusk     = "dusk"
	AnchorMidnight = "midnight"
)

// fallback average times used when the solar calculation is undefined
// for both the requested day and the next.
var fallbacks = map[string]struct{ hour, min int }{
	AnchorDawn:     {6, 0},
	AnchorSunrise:  {6, 30},
	AnchorNoon:     {12, 0},
	AnchorSunset:   {18, 30},
	AnchorDusk:     {19, 0},
	AnchorMidnight: {0, 0},
}

// ComputeAnchors returns all six solar anchors for the civil day of ref
// at the observer's position, expressed in the observer's timezone.
//
// The midnight anchor is the solar midnight following the reference day
// (one day ahead), so "@midnight" always points at the upcoming night
// boundary rather than the one already behind us.
func ComputeAnchors(ref time.Time, obs Observer) map[string]time.Time {
	day := ref.In(obs.Location)
	observer := astral.Observer{Latitude: obs.Latitude, Longitude: obs.Longitude}

	anchors := map[string]time.Time{
		AnchorDawn: solarOrFallback(AnchorDawn, day, obs.Location, func(d time.Time) (time.Time, error) {
			return astral.Dawn(observer, d, astral.DepressionCivil)
		}),
		AnchorSunrise: solarOrFallback(AnchorSunrise, day, obs.Location, func(d time.Time) (time.Time, error) {
			return astral.Sunrise(observer, d)
		}),
		AnchorNoon:  astral.Noon(observer, day).In(obs.Location),
		AnchorSunset: solarOrFallback(AnchorSunset, day, obs.Location, func(d time.Time) (time.Time, error) {
			return astral.Sunset(observer, d)
		}),
		AnchorDusk: solarOrFallback(AnchorDusk, day, obs.Location, func(d time.Time) (time.Time, error) {
			return astral.Dusk(observer, d, astral.DepressionCivil)
		}),
		AnchorMidnight: astral.Midnight(observer, day).In(obs.Location).AddDate(0, 0, 1),
	}
	return anchors
}

// solarOrFallback tries the solar calculation for the given day, then
// the next day, then gives up and uses the fixed average time on the
// original day.
func solarOrFallback(name string, day time.Time, loc *time.Location, calc func(time.Time) (time.Time, error)) time.Time {
	if at, err := calc(day); err == nil {
		return at.In(loc)
	}
	if at, err := calc(day.AddDate(0, 0, 1)); err == nil {
		return at.In(loc)
	}
	fb := fallbacks[name]
	return time.Date(day.Year(), day.Month(), day.Day(), fb.hour, fb.min, 0, 0, loc)
}
