package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// AppConfig holds all configuration for the service.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Location  LocationConfig  `mapstructure:"location"`
	Request   RequestConfig   `mapstructure:"request"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ProviderConfig configures the Open-Meteo client.
type ProviderConfig struct {
	AirQualityURL string        `mapstructure:"air_quality_url"`
	WeatherURL    string        `mapstructure:"weather_url"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInitial  time.Duration `mapstructure:"retry_initial"`
	RetryMax      time.Duration `mapstructure:"retry_max"`
	ForecastDays  int           `mapstructure:"forecast_days"`
	SyncPastDays  int           `mapstructure:"sync_past_days"`
}

// LocationConfig is the default location used when a request omits one.
type LocationConfig struct {
	City           string  `mapstructure:"city"`
	Latitude       float64 `mapstructure:"latitude"`
	Longitude      float64 `mapstructure:"longitude"`
	Timezone       string  `mapstructure:"timezone"`
	LookupTimezone bool    `mapstructure:"lookup_timezone"`
}

type RequestConfig struct {
	// Timeout bounds the joined provider fetch of a single request.
	Timeout time.Duration `mapstructure:"timeout"`
}

type OracleConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Backend         string        `mapstructure:"backend"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MongoURI        string        `mapstructure:"mongo_uri"`
	MongoDatabase   string        `mapstructure:"mongo_database"`
	MongoCollection string        `mapstructure:"mongo_collection"`
	MongoTimeout    time.Duration `mapstructure:"mongo_timeout"`
}

// SchedulerConfig drives the periodic sync. It is disabled when Interval is
// zero or no locations are configured.
type SchedulerConfig struct {
	Interval   time.Duration `mapstructure:"interval"`
	Cities     string        `mapstructure:"cities"`
	Latitudes  string        `mapstructure:"latitudes"`
	Longitudes string        `mapstructure:"longitudes"`

	// Locations is parsed from the comma lists above.
	Locations []airquality.LocationQuery `mapstructure:"-"`
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and AQI_* environment variables, in increasing precedence.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("AQI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for compatibility with existing deployments.
	_ = v.BindEnv("server.port", "AQI_SERVER_PORT", "PORT")
	_ = v.BindEnv("oracle.url", "AQI_ORACLE_URL", "ML_SERVICE_URL")
	_ = v.BindEnv("store.mongo_uri", "AQI_STORE_MONGO_URI", "MONGODB_URI")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	locs, err := loadSchedulerLocations(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	cfg.Scheduler.Locations = locs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("provider.air_quality_url", "https://air-quality-api.open-meteo.com/v1/air-quality")
	v.SetDefault("provider.weather_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("provider.http_timeout", "10s")
	v.SetDefault("provider.max_retries", 2)
	v.SetDefault("provider.retry_initial", "500ms")
	v.SetDefault("provider.retry_max", "5s")
	v.SetDefault("provider.forecast_days", 5)
	v.SetDefault("provider.sync_past_days", 2)

	v.SetDefault("location.city", "Vadodara")
	v.SetDefault("location.latitude", 22.3072)
	v.SetDefault("location.longitude", 73.1812)
	v.SetDefault("location.timezone", "Asia/Kolkata")
	v.SetDefault("location.lookup_timezone", false)

	v.SetDefault("request.timeout", "20s")

	v.SetDefault("oracle.url", "http://localhost:5001")
	v.SetDefault("oracle.timeout", "30s")

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.sqlite_path", "aqi.db")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_database", "aqi")
	v.SetDefault("store.mongo_collection", "aqirecords")
	v.SetDefault("store.mongo_timeout", "10s")

	v.SetDefault("scheduler.interval", "0s")
	v.SetDefault("scheduler.cities", "")
	v.SetDefault("scheduler.latitudes", "")
	v.SetDefault("scheduler.longitudes", "")
}

// Validate rejects values the service cannot start with.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Location.Latitude < -90 || c.Location.Latitude > 90 {
		errs = append(errs, fmt.Errorf("location.latitude %v out of range", c.Location.Latitude))
	}
	if c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		errs = append(errs, fmt.Errorf("location.longitude %v out of range", c.Location.Longitude))
	}
	if c.Location.Timezone != "" {
		if _, err := time.LoadLocation(c.Location.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("location.timezone: %w", err))
		}
	}
	if c.Provider.ForecastDays < 1 || c.Provider.ForecastDays > 16 {
		errs = append(errs, fmt.Errorf("provider.forecast_days must be between 1 and 16"))
	}
	if c.Provider.SyncPastDays < 0 {
		errs = append(errs, fmt.Errorf("provider.sync_past_days must not be negative"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("provider.max_retries must not be negative"))
	}
	if c.Provider.RetryInitial <= 0 {
		errs = append(errs, fmt.Errorf("provider.retry_initial must be positive"))
	}
	if c.Request.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("request.timeout must be positive"))
	}
	if c.Scheduler.Interval < 0 {
		errs = append(errs, fmt.Errorf("scheduler.interval must not be negative"))
	}

	switch c.Store.Backend {
	case BackendMemory, BackendSQLite, BackendMongo:
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is not one of memory, sqlite, mongo", c.Store.Backend))
	}

	return errors.Join(errs...)
}

// DefaultLocation returns the configured fallback location.
func (c *AppConfig) DefaultLocation() airquality.Location {
	return airquality.Location{
		City:      c.Location.City,
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
		Timezone:  c.Location.Timezone,
	}
}

// NewLogger creates a new slog.Logger based on the configuration.
func (c *AppConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(c.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func loadSchedulerLocations(sc SchedulerConfig) ([]airquality.LocationQuery, error) {
	if strings.TrimSpace(sc.Cities) == "" {
		return nil, nil
	}

	cities := splitList(sc.Cities)
	lats := splitList(sc.Latitudes)
	lons := splitList(sc.Longitudes)
	if len(cities) != len(lats) || len(cities) != len(lons) {
		return nil, fmt.Errorf("number of scheduler cities, latitudes and longitudes must be the same")
	}

	locs := make([]airquality.LocationQuery, 0, len(cities))
	for i := range cities {
		lat, err := strconv.ParseFloat(lats[i], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler latitude %q: %w", lats[i], err)
		}
		lon, err := strconv.ParseFloat(lons[i], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler longitude %q: %w", lons[i], err)
		}
		locs = append(locs, airquality.LocationQuery{
			City:      cities[i],
			Latitude:  &lat,
			Longitude: &lon,
		})
	}

	return locs, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
