package weatherchannel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zaneriley/discord-cogs-for-small-servers-sub000/metrics"
)

const (
	APIOpenMeteo  = "open-meteo"
	APIWeatherGov = "weather-gov"

	providerTimeout = 30 * time.Second
)

// Report is a provider-agnostic forecast snapshot for one city.
type Report struct {
	City        string
	Condition   string
	Temperature float64
	Unit        string
	TempMax     float64
	TempMin     float64
	Wind        string
	Humidity    int
	Sunrise     string
	Sunset      string
	Alerts      []string
}

// Provider fetches the current forecast for a city.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, city City) (Report, error)
}

// NewProvider builds the provider for an API type.
func NewProvider(api string, client *http.Client) (Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: providerTimeout}
	}
	switch api {
	case APIOpenMeteo:
		return &OpenMeteoClient{BaseURL: openMeteoBaseURL, HTTPClient: client}, nil
	case APIWeatherGov:
		return &WeatherGovClient{BaseURL: weatherGovBaseURL, HTTPClient: client}, nil
	}
	return nil, fmt.Errorf("unknown weather api %q", api)
}

// DefaultProviders builds one provider per known API type.
func DefaultProviders(client *http.Client) map[string]Provider {
	providers := map[string]Provider{}
	for _, api := range []string{APIOpenMeteo, APIWeatherGov} {
		p, _ := NewProvider(api, client)
		providers[api] = p
	}
	return providers
}

// fetchTracked wraps a provider call with the request metrics.
func fetchTracked(ctx context.Context, p Provider, city City) (Report, error) {
	report, err := p.Fetch(ctx, city)
	if err != nil {
		metrics.WeatherProviderRequests.WithLabelValues(p.Name(), "error").Inc()
		metrics.WeatherFetchFail.Add(1)
		return Report{}, err
	}
	metrics.WeatherProviderRequests.WithLabelValues(p.Name(), "success").Inc()
	metrics.WeatherFetchSuccess.Add(1)
	return report, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "discord-cogs-weatherchannel")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("requesting %s: status %d: %s", url, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
