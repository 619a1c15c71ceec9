package domain

import "time"

// WeatherSample is an ambient-conditions observation stored on the weather
// sampling cadence for outage annotation and correlation queries.
type WeatherSample struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp       time.Time `gorm:"index" json:"timestamp"`
	TemperatureC    float64   `json:"temperature_c"`
	HumidityPct     float64   `json:"humidity_pct"`
	WindSpeedKmh    float64   `json:"wind_speed_kmh"`
	WindDirection   string    `json:"wind_direction"`
	Condition       string    `json:"condition"`
	PrecipitationMm float64   `json:"precipitation_mm"`
	VisibilityKm    float64   `json:"visibility_km"`
	PressureHpa     float64   `json:"pressure_hpa"`
	CloudCoverPct   float64   `json:"cloud_cover_pct"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName Specify table name
func (WeatherSample) TableName() string {
	return "weather_sample"
}
