package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m2tx/agent_chat/internal/tool"
)

const (
	DefaultGeocodingURL   = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL    = "https://api.open-meteo.com/v1/forecast"
	DefaultWeatherTimeout = 10 * time.Second
)

// WeatherOptions configures the getWeather tool.
type WeatherOptions struct {
	GeocodingURL string
	ForecastURL  string
	Timeout      time.Duration
	Client       *http.Client
}

type weatherArgs struct {
	City string `json:"city" jsonschema:"City name"`
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature2m float64 `json:"temperature_2m"`
	} `json:"current"`
	CurrentUnits struct {
		Temperature2m string `json:"temperature_2m"`
	} `json:"current_units"`
}

// CreateWeatherDeclaration returns the getWeather tool. It resolves the
// requested city to coordinates before querying the forecast.
func CreateWeatherDeclaration(opts WeatherOptions) tool.Declaration {
	if opts.GeocodingURL == "" {
		opts.GeocodingURL = DefaultGeocodingURL
	}
	if opts.ForecastURL == "" {
		opts.ForecastURL = DefaultForecastURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultWeatherTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return tool.Declaration{
		Name:        "getWeather",
		Description: "Get the current weather for a location",
		Parameters:  tool.MustSchemaFor[weatherArgs](),
		Execute: func(ctx context.Context, args tool.Args) (map[string]any, error) {
			var in weatherArgs
			if err := args.Decode(&in); err != nil {
				return nil, err
			}
			city := strings.TrimSpace(in.City)
			if city == "" {
				return nil, fmt.Errorf("city is required")
			}

			ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
			defer cancel()

			var geo geocodingResponse
			if err := getJSON(ctx, client, opts.GeocodingURL, url.Values{
				"name":     {city},
				"count":    {"1"},
				"language": {"en"},
				"format":   {"json"},
			}, &geo); err != nil {
				return nil, fmt.Errorf("geocode %q: %w", city, err)
			}
			if len(geo.Results) == 0 {
				return nil, fmt.Errorf("city %q not found", city)
			}
			place := geo.Results[0]

			var forecast forecastResponse
			if err := getJSON(ctx, client, opts.ForecastURL, url.Values{
				"latitude":  {strconv.FormatFloat(place.Latitude, 'f', 4, 64)},
				"longitude": {strconv.FormatFloat(place.Longitude, 'f', 4, 64)},
				"current":   {"temperature_2m"},
				"timezone":  {"auto"},
			}, &forecast); err != nil {
				return nil, fmt.Errorf("forecast %q: %w", city, err)
			}

			unit := forecast.CurrentUnits.Temperature2m
			if unit == "" {
				unit = "°C"
			}
			temp := strconv.FormatFloat(forecast.Current.Temperature2m, 'f', -1, 64)

			return map[string]any{
				"city":        place.Name,
				"country":     place.Country,
				"temperature": forecast.Current.Temperature2m,
				"unit":        unit,
				"observed_at": forecast.Current.Time,
				"weather":     fmt.Sprintf("Current temperature in %s: %s%s", city, temp, unit),
			}, nil
		},
	}
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, query url.Values, out any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
