package config

import (
	"os"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system-level settings
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig web server settings
type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// DBConfig database settings; Type is "sqlite" or "postgres"
type DBConfig struct {
	Type   string `yaml:"type" json:"type"`
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Name   string `yaml:"name" json:"name"`
	User   string `yaml:"user" json:"user"`
	Passwd string `yaml:"passwd" json:"passwd"`
	Debug  bool   `yaml:"debug" json:"debug"`
}

// LogConfig logger settings
type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// CollectorConfig background collection settings, all intervals in seconds
type CollectorConfig struct {
	Interval         int `yaml:"interval" json:"interval"`
	WeatherInterval  int `yaml:"weather_interval" json:"weather_interval"`
	AnalysisInterval int `yaml:"analysis_interval" json:"analysis_interval"`
	RetentionDays    int `yaml:"retention_days" json:"retention_days"`
}

// DishConfig terminal telemetry endpoint settings
type DishConfig struct {
	Address string `yaml:"address" json:"address"`
	Timeout int    `yaml:"timeout" json:"timeout"`
}

// WeatherConfig OpenWeatherMap settings; weather sampling is disabled
// when the key or both coordinates are empty
type WeatherConfig struct {
	ApiKey    string  `yaml:"api_key" json:"api_key"`
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// SpeedTestConfig speed test engine settings
type SpeedTestConfig struct {
	DownloadURLs []string `yaml:"download_urls" json:"download_urls"`
	UploadURL    string   `yaml:"upload_url" json:"upload_url"`
	PingHost     string   `yaml:"ping_host" json:"ping_host"`
}

type AppConfig struct {
	System    SysConfig       `yaml:"system" json:"system"`
	Web       WebConfig       `yaml:"web" json:"web"`
	Database  DBConfig        `yaml:"database" json:"database"`
	Logger    LogConfig       `yaml:"logger" json:"logger"`
	Collector CollectorConfig `yaml:"collector" json:"collector"`
	Dish      DishConfig      `yaml:"dish" json:"dish"`
	Weather   WeatherConfig   `yaml:"weather" json:"weather"`
	SpeedTest SpeedTestConfig `yaml:"speedtest" json:"speedtest"`
}

// DefaultAppConfig returns a runnable configuration for a single-terminal
// deployment: sqlite store under the workdir, 60 second collection ticks.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "dishwatch",
			Location: "Local",
			Workdir:  "/var/dishwatch",
			Debug:    false,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 1899,
		},
		Database: DBConfig{
			Type: "sqlite",
			Name: "dishwatch",
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: false,
			Filename:   "/var/dishwatch/dishwatch.log",
		},
		Collector: CollectorConfig{
			Interval:         60,
			WeatherInterval:  600,
			AnalysisInterval: 3600,
			RetentionDays:    90,
		},
		Dish: DishConfig{
			Address: "http://192.168.100.1:9200",
			Timeout: 10,
		},
		SpeedTest: SpeedTestConfig{
			DownloadURLs: []string{
				"http://speedtest.ftp.otenet.gr/files/test10Mb.db",
				"http://speedtest.belwue.net/10M",
			},
			UploadURL: "https://httpbin.org/post",
			PingHost:  "8.8.8.8",
		},
	}
}

// LoadConfig reads the yaml file at path on top of defaults, then applies
// DISHWATCH_* environment overrides. A missing file is not an error.
func LoadConfig(path string) *AppConfig {
	cfg := DefaultAppConfig()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}
	applyEnvOverrides(cfg)
	return cfg
}

func applyEnvOverrides(cfg *AppConfig) {
	setEnvString(&cfg.System.Workdir, "DISHWATCH_WORKDIR")
	setEnvString(&cfg.System.Location, "DISHWATCH_LOCATION")
	setEnvBool(&cfg.System.Debug, "DISHWATCH_DEBUG")
	setEnvString(&cfg.Web.Host, "DISHWATCH_WEB_HOST")
	setEnvInt(&cfg.Web.Port, "DISHWATCH_WEB_PORT")
	setEnvString(&cfg.Database.Type, "DISHWATCH_DB_TYPE")
	setEnvString(&cfg.Database.Host, "DISHWATCH_DB_HOST")
	setEnvInt(&cfg.Database.Port, "DISHWATCH_DB_PORT")
	setEnvString(&cfg.Database.Name, "DISHWATCH_DB_NAME")
	setEnvString(&cfg.Database.User, "DISHWATCH_DB_USER")
	setEnvString(&cfg.Database.Passwd, "DISHWATCH_DB_PASSWD")
	setEnvInt(&cfg.Collector.Interval, "DISHWATCH_COLLECT_INTERVAL")
	setEnvInt(&cfg.Collector.RetentionDays, "DISHWATCH_RETENTION_DAYS")
	setEnvString(&cfg.Dish.Address, "DISHWATCH_DISH_ADDRESS")
	setEnvString(&cfg.Weather.ApiKey, "WEATHER_API_KEY")
	setEnvFloat(&cfg.Weather.Latitude, "DISHWATCH_LATITUDE")
	setEnvFloat(&cfg.Weather.Longitude, "DISHWATCH_LONGITUDE")
}

func setEnvString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setEnvInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = cast.ToInt(v)
	}
}

func setEnvFloat(dst *float64, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = cast.ToFloat64(v)
	}
}

func setEnvBool(dst *bool, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = cast.ToBool(v)
	}
}
