package weatherchannel

import (
	"context"
	"fmt"
	"net/http"
)

const weatherGovBaseURL = "https://api.weather.gov"

// WeatherGovClient fetches forecasts from the National Weather Service API:
// a point lookup resolves the gridpoint forecast URL, then the forecast and
// any active alerts are fetched.
type WeatherGovClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *WeatherGovClient) Name() string { return APIWeatherGov }

type weatherGovPoints struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type weatherGovForecast struct {
	Properties struct {
		Periods []struct {
			Temperature     float64 `json:"temperature"`
			TemperatureUnit string  `json:"temperatureUnit"`
			WindSpeed       string  `json:"windSpeed"`
			ShortForecast   string  `json:"shortForecast"`
			RelativeHumidity struct {
				Value int `json:"value"`
			} `json:"relativeHumidity"`
		} `json:"periods"`
	} `json:"properties"`
}

type weatherGovAlerts struct {
	Features []struct {
		Properties struct {
			Headline string `json:"headline"`
		} `json:"properties"`
	} `json:"features"`
}

// Fetch resolves the gridpoint for the city and returns the first forecast
// period plus active alert headlines. A failed alerts call is not fatal.
func (c *WeatherGovClient) Fetch(ctx context.Context, city City) (Report, error) {
	lat, lon, err := ParseLatLon(city.Location())
	if err != nil {
		return Report{}, err
	}
	point := fmt.Sprintf("%g,%g", lat, lon)

	var points weatherGovPoints
	if err := getJSON(ctx, c.HTTPClient, fmt.Sprintf("%s/points/%s", c.BaseURL, point), &points); err != nil {
		return Report{}, fmt.Errorf("weather.gov point lookup for %s: %w", city.Name, err)
	}
	if points.Properties.Forecast == "" {
		return Report{}, fmt.Errorf("weather.gov point lookup for %s: no forecast URL", city.Name)
	}

	var forecast weatherGovForecast
	if err := getJSON(ctx, c.HTTPClient, points.Properties.Forecast, &forecast); err != nil {
		return Report{}, fmt.Errorf("weather.gov forecast for %s: %w", city.Name, err)
	}
	if len(forecast.Properties.Periods) == 0 {
		return Report{}, fmt.Errorf("weather.gov forecast for %s: no periods", city.Name)
	}
	period := forecast.Properties.Periods[0]

	report := Report{
		City:        city.DisplayName,
		Condition:   period.ShortForecast,
		Temperature: period.Temperature,
		Unit:        "°" + period.TemperatureUnit,
		Wind:        period.WindSpeed,
		Humidity:    period.RelativeHumidity.Value,
	}

	var alerts weatherGovAlerts
	if err := getJSON(ctx, c.HTTPClient, fmt.Sprintf("%s/alerts/active?point=%s", c.BaseURL, point), &alerts); err == nil {
		for _, feature := range alerts.Features {
			if feature.Properties.Headline != "" {
				report.Alerts = append(report.Alerts, feature.Properties.Headline)
			}
		}
	}
	return report, nil
}
