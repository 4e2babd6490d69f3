package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/adapters/kalshi"
	"github.com/alejandrodnm/oddsbot/internal/application/sweep"
	"github.com/alejandrodnm/oddsbot/internal/domain"
	"github.com/alejandrodnm/oddsbot/internal/strategy"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa de oddsbot.
type Config struct {
	Data     DataConfig         `yaml:"data"`
	Strategy map[string]float64 `yaml:"strategy"` // valores fijos del ParameterSet
	Sweep    SweepConfig        `yaml:"sweep"`
	Live     LiveConfig         `yaml:"live"`
	Kalshi   KalshiConfig       `yaml:"kalshi"`
	Storage  StorageConfig      `yaml:"storage"`
	Log      LogConfig          `yaml:"log"`
	Metrics  MetricsConfig      `yaml:"metrics"`
}

// DataConfig apunta a los ficheros de replay ya filtrados.
type DataConfig struct {
	Dir   string `yaml:"dir"`
	Weeks []int  `yaml:"weeks"` // vacío = todas
}

// SweepConfig controla el optimizador.
type SweepConfig struct {
	Workers            int                    `yaml:"workers"` // 0 = NumCPU
	Reduction          string                 `yaml:"reduction"`
	UnitTimeoutSeconds int                    `yaml:"unit_timeout_seconds"`
	MaxGridPoints      int                    `yaml:"max_grid_points"`
	StartingBankroll   float64                `yaml:"starting_bankroll"`
	CSVDir             string                 `yaml:"csv_dir"`
	SaveRuns           bool                   `yaml:"save_runs"`
	Top                int                    `yaml:"top"`
	Ranges             map[string]sweep.Range `yaml:"ranges"`
}

// LiveConfig controla el loop en vivo.
type LiveConfig struct {
	Source                 string  `yaml:"source"` // poll | ws | replay
	SeriesTicker           string  `yaml:"series_ticker"`
	TickIntervalSeconds    float64 `yaml:"tick_interval_seconds"`
	DisplayIntervalSeconds float64 `yaml:"display_interval_seconds"`
	SigmaMinutes           float64 `yaml:"sigma_minutes"`
	ParamsFrom             string  `yaml:"params_from"` // config | best
}

// KalshiConfig contiene endpoints y credenciales de Kalshi.
type KalshiConfig struct {
	APIBase        string `yaml:"api_base"`
	WSURL          string `yaml:"ws_url"`
	Credential     string `yaml:"credential"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig expone /metrics si Addr no está vacío.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica YAML y aplica overrides de entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Params devuelve el ParameterSet fijo. Si strategy.alpha no está, se deriva
// de live.sigma_minutes para un muestreo de 1 Hz.
func (c *Config) Params() domain.ParameterSet {
	m := make(map[string]float64, len(c.Strategy)+1)
	for k, v := range c.Strategy {
		m[k] = v
	}
	if _, ok := m[domain.ParamAlpha]; !ok && c.Live.SigmaMinutes > 0 {
		m[domain.ParamAlpha] = strategy.AlphaFromSigma(c.Live.SigmaMinutes, 60)
	}
	return domain.NewParameterSet(m)
}

// Fixed devuelve los valores de strategy que no se barren en sweep.ranges.
func (c *Config) Fixed() map[string]float64 {
	fixed := make(map[string]float64)
	for k, v := range c.Strategy {
		if _, swept := c.Sweep.Ranges[k]; !swept {
			fixed[k] = v
		}
	}
	return fixed
}

// UnitTimeout devuelve el timeout por run del sweep (0 = sin límite).
func (c *Config) UnitTimeout() time.Duration {
	return time.Duration(c.Sweep.UnitTimeoutSeconds) * time.Second
}

// TickInterval devuelve el intervalo entre ticks en vivo.
func (c *Config) TickInterval() time.Duration {
	return seconds(c.Live.TickIntervalSeconds)
}

// DisplayInterval devuelve el intervalo de refresco del dashboard.
func (c *Config) DisplayInterval() time.Duration {
	return seconds(c.Live.DisplayIntervalSeconds)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func (c *Config) validate() error {
	switch c.Live.Source {
	case "poll", "ws", "replay":
	default:
		return fmt.Errorf("config.validate: live.source %q must be poll|ws|replay: %w", c.Live.Source, domain.ErrInvalidParameter)
	}
	switch c.Live.ParamsFrom {
	case "config", "best":
	default:
		return fmt.Errorf("config.validate: live.params_from %q must be config|best: %w", c.Live.ParamsFrom, domain.ErrInvalidParameter)
	}
	if _, err := sweep.ParseReduction(c.Sweep.Reduction); err != nil {
		return fmt.Errorf("config.validate: %w", err)
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("KALSHI_CREDENTIAL"); v != "" {
		cfg.Kalshi.Credential = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); v != "" {
		cfg.Kalshi.PrivateKeyPath = v
	}
	if v := os.Getenv("ODDSBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data/filtered"
	}
	if cfg.Sweep.Reduction == "" {
		cfg.Sweep.Reduction = string(sweep.ReduceSum)
	}
	if cfg.Sweep.StartingBankroll <= 0 {
		cfg.Sweep.StartingBankroll = sweep.DefaultStartingBankroll
	}
	if cfg.Sweep.MaxGridPoints <= 0 {
		cfg.Sweep.MaxGridPoints = sweep.DefaultMaxGridPoints
	}
	if cfg.Sweep.CSVDir == "" {
		cfg.Sweep.CSVDir = "sweeps"
	}
	if cfg.Sweep.Top <= 0 {
		cfg.Sweep.Top = 20
	}
	if cfg.Live.Source == "" {
		cfg.Live.Source = "ws"
	}
	if cfg.Live.TickIntervalSeconds <= 0 {
		cfg.Live.TickIntervalSeconds = 1
	}
	if cfg.Live.DisplayIntervalSeconds <= 0 {
		cfg.Live.DisplayIntervalSeconds = 10
	}
	if cfg.Live.ParamsFrom == "" {
		cfg.Live.ParamsFrom = "config"
	}
	if cfg.Kalshi.APIBase == "" {
		cfg.Kalshi.APIBase = kalshi.DefaultAPIBase
	}
	if cfg.Kalshi.WSURL == "" {
		cfg.Kalshi.WSURL = kalshi.DefaultWSURL
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "oddsbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
