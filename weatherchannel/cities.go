// package weatherchannel posts daily weather for the server's cities: two
// forecast providers behind one interface, a formatter, and an optional LLM
// summary paragraph.
package weatherchannel

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed cities.json
var citiesFS embed.FS

// Everywhere is the pseudo-city that fans out to the whole registry.
const Everywhere = "everywhere"

// City is one registry entry.
type City struct {
	Name        string  `json:"-"`
	DisplayName string  `json:"display_name"`
	API         string  `json:"api"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Location renders the coordinates as the "lat,lon" string the providers
// consume.
func (c City) Location() string {
	return fmt.Sprintf("%g,%g", c.Latitude, c.Longitude)
}

// LoadCities parses the embedded registry.
func LoadCities() (map[string]City, error) {
	raw, err := citiesFS.ReadFile("cities.json")
	if err != nil {
		return nil, fmt.Errorf("reading embedded city registry: %w", err)
	}
	cities := map[string]City{}
	if err := json.Unmarshal(raw, &cities); err != nil {
		return nil, fmt.Errorf("parsing city registry: %w", err)
	}
	for name, city := range cities {
		city.Name = name
		if _, _, err := ParseLatLon(city.Location()); err != nil {
			return nil, fmt.Errorf("city %s: %w", name, err)
		}
		cities[name] = city
	}
	return cities, nil
}

// ResolveCities maps a requested city name to the cities to fetch.
// Everywhere (or an empty name) selects the whole registry, sorted by name so
// the report order is stable.
func ResolveCities(cities map[string]City, name string) ([]City, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == Everywhere {
		names := make([]string, 0, len(cities))
		for n := range cities {
			names = append(names, n)
		}
		sort.Strings(names)
		out := make([]City, 0, len(names))
		for _, n := range names {
			out = append(out, cities[n])
		}
		return out, nil
	}
	if city, ok := cities[name]; ok {
		return []City{city}, nil
	}
	return nil, fmt.Errorf("unknown city %q", name)
}

// ParseLatLon validates a "lat,lon" location string.
func ParseLatLon(location string) (float64, float64, error) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("location %q is not lat,lon", location)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude in %q: %w", location, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude in %q: %w", location, err)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude %g out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude %g out of range", lon)
	}
	return lat, lon, nil
}
