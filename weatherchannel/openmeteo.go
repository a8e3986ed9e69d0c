package weatherchannel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const openMeteoBaseURL = "https://api.open-meteo.com"

// weatherCodes maps the WMO interpretation codes Open-Meteo returns to short
// condition strings. Unlisted codes fall back to a numbered label.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	80: "Rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	95: "Thunderstorm",
	96: "Thunderstorm with hail",
	99: "Thunderstorm with heavy hail",
}

// OpenMeteoClient fetches forecasts from the Open-Meteo API. No key needed.
type OpenMeteoClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *OpenMeteoClient) Name() string { return APIOpenMeteo }

type openMeteoResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
	Hourly struct {
		Humidity []int `json:"relative_humidity_2m"`
	} `json:"hourly"`
	Daily struct {
		TempMax []float64 `json:"temperature_2m_max"`
		TempMin []float64 `json:"temperature_2m_min"`
		Sunrise []string  `json:"sunrise"`
		Sunset  []string  `json:"sunset"`
	} `json:"daily"`
}

// Fetch pulls current conditions plus today's daily aggregates.
func (c *OpenMeteoClient) Fetch(ctx context.Context, city City) (Report, error) {
	lat, lon, err := ParseLatLon(city.Location())
	if err != nil {
		return Report{}, err
	}

	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%g", lat))
	query.Set("longitude", fmt.Sprintf("%g", lon))
	query.Set("current_weather", "true")
	query.Set("hourly", "relative_humidity_2m")
	query.Set("daily", "temperature_2m_max,temperature_2m_min,sunrise,sunset")
	query.Set("forecast_days", "1")
	query.Set("timezone", "auto")

	var payload openMeteoResponse
	if err := getJSON(ctx, c.HTTPClient, c.BaseURL+"/v1/forecast?"+query.Encode(), &payload); err != nil {
		return Report{}, fmt.Errorf("open-meteo forecast for %s: %w", city.Name, err)
	}

	condition := weatherCodes[payload.CurrentWeather.WeatherCode]
	if condition == "" {
		condition = fmt.Sprintf("Weather code %d", payload.CurrentWeather.WeatherCode)
	}

	report := Report{
		City:        city.DisplayName,
		Condition:   condition,
		Temperature: payload.CurrentWeather.Temperature,
		Unit:        "°C",
		Wind:        fmt.Sprintf("%.0f km/h", payload.CurrentWeather.WindSpeed),
	}
	if len(payload.Hourly.Humidity) > 0 {
		report.Humidity = payload.Hourly.Humidity[0]
	}
	if len(payload.Daily.TempMax) > 0 {
		report.TempMax = payload.Daily.TempMax[0]
	}
	if len(payload.Daily.TempMin) > 0 {
		report.TempMin = payload.Daily.TempMin[0]
	}
	if len(payload.Daily.Sunrise) > 0 {
		report.Sunrise = payload.Daily.Sunrise[0]
	}
	if len(payload.Daily.Sunset) > 0 {
		report.Sunset = payload.Daily.Sunset[0]
	}
	return report, nil
}
