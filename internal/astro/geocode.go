package astro

import (
	"context"
	"errors"
	"fmt"
	"time"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/codingsince1985/geo-golang/openstreetmap"
	"github.com/zsefvlol/timezonemapper"
)

// ErrLocationNotFound is returned when the geocoder has no match for a
// place name.
var ErrLocationNotFound = errors.New("astro: location not found")

// Location is a resolved site: coordinates plus the IANA timezone that
// governs its civil day. It serializes to JSON for the geocode cache.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// TimeLocation loads the IANA timezone of the location.
func (l Location) TimeLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("astro: invalid timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

// Observer converts the location into an astro observer.
func (l Location) Observer() (Observer, error) {
	loc, err := l.TimeLocation()
	if err != nil {
		return Observer{}, err
	}
	return Observer{Latitude: l.Latitude, Longitude: l.Longitude, Location: loc}, nil
}

// Resolver turns place names or raw coordinates into Locations.
type Resolver struct {
	geocoder geo.Geocoder
}

// NewResolver creates a resolver backed by the OpenStreetMap Nominatim
// geocoder.
func NewResolver() *Resolver {
	return &Resolver{geocoder: openstreetmap.Geocoder()}
}

// NewResolverWith creates a resolver with a custom geocoder. Used by
// tests to avoid network calls.
func NewResolverWith(g geo.Geocoder) *Resolver {
	return &Resolver{geocoder: g}
}

// ResolveName geocodes a place name and derives its timezone from the
// returned coordinates.
func (r *Resolver) ResolveName(ctx context.Context, name string) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}

	loc, err := r.geocoder.Geocode(name)
	if err != nil {
		return Location{}, fmt.Errorf("astro: geocode %q: %w", name, err)
	}
	if loc == nil {
		return Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, name)
	}

	return Location{
		Name:      name,
		Latitude:  loc.Lat,
		Longitude: loc.Lng,
		Timezone:  timezonemapper.LatLngToTimezoneString(loc.Lat, loc.Lng),
	}, nil
}

// ResolveCoords builds a Location directly from coordinates, mapping
// them to a timezone. No network call is involved.
func (r *Resolver) ResolveCoords(lat, lng float64) Location {
	return Location{
		Latitude:  lat,
		Longitude: lng,
		Timezone:  timezonemapper.LatLngToTimezoneString(lat, lng),
	}
}
