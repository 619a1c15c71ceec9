// Package weather wraps the OpenWeatherMap current-conditions API. The
// service is optional: without an API key and coordinates every method
// degrades to empty results instead of errors.
package weather

import (
	"fmt"
	"sync"
	"time"

	"github.com/guonaihong/gout"
	"github.com/pkg/errors"

	"github.com/talkincode/dishwatch/internal/domain"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// cacheTTL bounds how often the upstream API is hit; collector ticks and
// outage annotations share one cached observation.
const cacheTTL = 10 * time.Minute

var ErrNotConfigured = errors.New("weather service is not configured")

type Service struct {
	apiKey  string
	lat     float64
	lon     float64
	baseURL string
	timeout time.Duration

	mu        sync.Mutex
	cached    *domain.WeatherSample
	fetchedAt time.Time
}

func NewService(apiKey string, lat, lon float64) *Service {
	return &Service{
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		baseURL: defaultBaseURL,
		timeout: 10 * time.Second,
	}
}

// Configured reports whether the service has a key and a location.
func (s *Service) Configured() bool {
	return s.apiKey != "" && !(s.lat == 0 && s.lon == 0)
}

// owmResponse is the subset of the OpenWeatherMap payload we read.
type owmResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Visibility float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain map[string]float64 `json:"rain"`
	Snow map[string]float64 `json:"snow"`
}

// Current returns the latest observation, hitting the upstream API at most
// once per cache window.
func (s *Service) Current() (*domain.WeatherSample, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && time.Since(s.fetchedAt) < cacheTTL {
		return s.cached, nil
	}

	var resp owmResponse
	err := gout.GET(s.baseURL).
		SetTimeout(s.timeout).
		SetQuery(gout.H{
			"lat":   s.lat,
			"lon":   s.lon,
			"appid": s.apiKey,
			"units": "metric",
		}).
		BindJSON(&resp).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "weather fetch")
	}

	sample := &domain.WeatherSample{
		Timestamp:       time.Now(),
		TemperatureC:    resp.Main.Temp,
		HumidityPct:     resp.Main.Humidity,
		WindSpeedKmh:    resp.Wind.Speed * 3.6,
		WindDirection:   windDirection(resp.Wind.Deg),
		PrecipitationMm: resp.Rain["1h"] + resp.Snow["1h"],
		VisibilityKm:    resp.Visibility / 1000,
		PressureHpa:     resp.Main.Pressure,
		CloudCoverPct:   resp.Clouds.All,
	}
	if len(resp.Weather) > 0 {
		sample.Condition = resp.Weather[0].Main
	}

	s.cached = sample
	s.fetchedAt = time.Now()
	return sample, nil
}

// Sample is the collector-facing accessor: nil when unconfigured or the
// upstream fetch fails.
func (s *Service) Sample() *domain.WeatherSample {
	sample, err := s.Current()
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			// logged by the caller's cadence, keep this quiet
			return nil
		}
		return nil
	}
	// copy so callers can stamp their own timestamp
	out := *sample
	out.ID = 0
	return &out
}

// ConditionNote renders a short human-readable annotation for outage
// records, e.g. "Rain 4.5°C". Empty when no observation is available.
func (s *Service) ConditionNote() string {
	sample, err := s.Current()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s %.1f°C", sample.Condition, sample.TemperatureC)
}

// ForecastImpact lists plain-language warnings derived from current
// conditions that commonly degrade satellite links.
func (s *Service) ForecastImpact() []string {
	sample, err := s.Current()
	if err != nil {
		return nil
	}

	var warnings []string
	if sample.PrecipitationMm > 5 {
		warnings = append(warnings, "Heavy precipitation may degrade signal quality")
	}
	if sample.WindSpeedKmh > 40 {
		warnings = append(warnings, "High winds may affect dish stability")
	}
	if sample.Condition == "Snow" {
		warnings = append(warnings, "Snow accumulation on the dish can block the signal")
	}
	if sample.VisibilityKm > 0 && sample.VisibilityKm < 1 {
		warnings = append(warnings, "Dense fog or heavy cloud cover detected")
	}
	return warnings
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// windDirection maps degrees to an 8-point compass label.
func windDirection(deg float64) string {
	for deg < 0 {
		deg += 360
	}
	idx := int((deg+22.5)/45) % 8
	return compassPoints[idx]
}
