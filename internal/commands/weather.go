package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	orchestration "github.com/lunavoice/luna/core"
)

// Forecast is the narrow slice of weather data the spoken reply needs.
type Forecast struct {
	Summary     string  `json:"summary"`
	Temperature float64 `json:"temperature"`
	Units       string  `json:"units"`
}

// WeatherService fetches the current forecast for a city.
type WeatherService interface {
	Forecast(ctx context.Context, city string) (*Forecast, error)
}

// Weather answers forecast intents through an injected service.
type Weather struct {
	service WeatherService
}

func NewWeather(service WeatherService) *Weather {
	return &Weather{service: service}
}

func (w *Weather) Handle(ctx context.Context, contextMap *orchestration.ContextMap) (orchestration.Continuation, error) {
	city := argString(contextMap, "city")
	if city == "" {
		contextMap.SetError(
			fmt.Errorf("no city in weather request"),
			"Which city would you like the weather for?",
		)
		return orchestration.Continuation{}, fmt.Errorf("no city in weather request")
	}

	forecast, err := w.service.Forecast(ctx, city)
	if err != nil {
		contextMap.SetError(
			fmt.Errorf("failed to fetch forecast: %w", err),
			"I couldn't reach the weather service, try again in a moment.",
		)
		return orchestration.Continuation{}, err
	}

	unit := "degrees"
	switch forecast.Units {
	case "metric":
		unit = "degrees Celsius"
	case "imperial":
		unit = "degrees Fahrenheit"
	}
	spoken := fmt.Sprintf("It's %.0f %s in %s, %s.", forecast.Temperature, unit, city, forecast.Summary)

	contextMap.Set(orchestration.ContextKeyResult, forecast)
	contextMap.Set(orchestration.ContextKeySpeech, spoken)
	return orchestration.Continuation{Stop: true}, nil
}

// HTTPWeatherService talks to a simple forecast endpoint returning the
// [Forecast] JSON shape.
type HTTPWeatherService struct {
	baseURL    string
	units      string
	httpClient *http.Client
}

func NewHTTPWeatherService(baseURL, units string, httpClient *http.Client) *HTTPWeatherService {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPWeatherService{baseURL: baseURL, units: units, httpClient: httpClient}
}

func (s *HTTPWeatherService) Forecast(ctx context.Context, city string) (*Forecast, error) {
	requestURL, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid weather base url: %w", err)
	}
	query := requestURL.Query()
	query.Set("city", city)
	query.Set("units", s.units)
	requestURL.RawQuery = query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 256))
		return nil, fmt.Errorf("weather request failed with status %d: %s", response.StatusCode, detail)
	}

	forecast := &Forecast{}
	if err := json.NewDecoder(response.Body).Decode(forecast); err != nil {
		return nil, fmt.Errorf("failed to decode forecast: %w", err)
	}
	if forecast.Units == "" {
		forecast.Units = s.units
	}
	return forecast, nil
}
