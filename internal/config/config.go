package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
)

type Config struct {
	DebugMode bool `env:"DEBUG_MODE"` // Режим дебага: development-логгер и debug-уровень

	// Server — HTTP-приёмник состояния игры
	Server ServerConfig

	// GSI — параметры файла gamestate_integration_*.cfg, который читает игра
	GSI GSIConfig

	StateMax int `env:"STATE_MAX"` // Максимум хранимых событий в ленте изменений состояния
}

// ServerConfig конфигурация HTTP-приёмника.
type ServerConfig struct {
	Port            int           `env:"GSI_PORT"`             // Порт на 127.0.0.1, куда игра шлёт состояние
	MaxBodyBytes    int64         `env:"GSI_MAX_BODY_BYTES"`   // Ограничение размера тела запроса
	ShutdownTimeout time.Duration `env:"GSI_SHUTDOWN_TIMEOUT"` // Таймаут graceful shutdown
	MetricsEnabled  bool          `env:"GSI_METRICS_ENABLED"`  // Отдавать /metrics (Prometheus) на том же порту
}

// GSIConfig описывает содержимое конфигурационного файла интеграции.
type GSIConfig struct {
	Name      string        `env:"GSI_NAME"`       // Имя интеграции, попадает в имя файла
	CfgFolder string        `env:"GSI_CFG_FOLDER"` // Папка cfg игры; пусто — искать через Steam
	Timeout   time.Duration `env:"GSI_TIMEOUT"`    // Сколько игра ждёт ответа на запрос
	Buffer    time.Duration `env:"GSI_BUFFER"`     // Сколько игра копит изменения перед отправкой
	Throttle  time.Duration `env:"GSI_THROTTLE"`   // Минимальный интервал между запросами
	Heartbeat time.Duration `env:"GSI_HEARTBEAT"`  // Интервал запросов без изменений
	AuthToken string        `env:"GSI_AUTH_TOKEN"` // Токен, который игра передаёт в auth.token (опционально)

	PrecisionTime     int `env:"GSI_PRECISION_TIME"`
	PrecisionPosition int `env:"GSI_PRECISION_POSITION"`
	PrecisionVector   int `env:"GSI_PRECISION_VECTOR"`

	Data []string `env:"GSI_DATA" envSeparator:","` // Подписки: provider,map,round,player_id,...
}

// DataSections — все секции, на которые можно подписаться в блоке "data".
var DataSections = []string{
	"provider",
	"map",
	"map_round_wins",
	"round",
	"player_id",
	"player_state",
	"player_weapons",
	"player_match_stats",
	"player_position",
	"allplayers_id",
	"allplayers_state",
	"allplayers_match_stats",
	"allplayers_weapons",
	"allplayers_position",
	"phase_countdowns",
	"allgrenades",
	"bomb",
}

// Defaults возвращает конфигурацию с предустановленными значениями по умолчанию.
// Эти значения перекрываются .env, переменными окружения и флагами CLI.
func Defaults() *Config {
	return &Config{
		DebugMode: false,
		Server: ServerConfig{
			Port:            3000,
			MaxBodyBytes:    4 << 20,
			ShutdownTimeout: 5 * time.Second,
			MetricsEnabled:  false,
		},
		GSI: GSIConfig{
			Name:              "gamestateserver",
			Timeout:           5 * time.Second,
			Buffer:            100 * time.Millisecond,
			Throttle:          500 * time.Millisecond,
			Heartbeat:         60 * time.Second,
			PrecisionTime:     3,
			PrecisionPosition: 1,
			PrecisionVector:   3,
			Data: []string{
				"provider", "map", "round", "player_id", "player_state",
				"player_weapons", "player_match_stats", "bomb",
			},
		},
		StateMax: 20,
	}
}

// Load собирает конфигурацию: дефолты, затем .env и переменные окружения.
// Флаги CLI накладываются позже через BindFlags.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// BindFlags регистрирует флаги поверх уже загруженных значений cfg.
func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVar(&cfg.DebugMode, "debug-mode", cfg.DebugMode, "включить режим дебага")
	fs.IntVar(&cfg.StateMax, "state-max", cfg.StateMax, "максимум хранимых событий в ленте изменений")

	// Server
	fs.IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "порт приёмника на 127.0.0.1")
	fs.Int64Var(&cfg.Server.MaxBodyBytes, "max-body-bytes", cfg.Server.MaxBodyBytes, "максимальный размер тела запроса в байтах")
	fs.DurationVar(&cfg.Server.ShutdownTimeout, "shutdown-timeout", cfg.Server.ShutdownTimeout, "таймаут graceful shutdown, напр. 5s")
	fs.BoolVar(&cfg.Server.MetricsEnabled, "metrics", cfg.Server.MetricsEnabled, "отдавать Prometheus-метрики на /metrics")

	// GSI
	fs.StringVar(&cfg.GSI.Name, "name", cfg.GSI.Name, "имя интеграции (gamestate_integration_<name>.cfg)")
	fs.StringVar(&cfg.GSI.CfgFolder, "cfg-folder", cfg.GSI.CfgFolder, "папка cfg игры; пусто — найти через Steam")
	fs.DurationVar(&cfg.GSI.Timeout, "gsi-timeout", cfg.GSI.Timeout, "timeout в конфиге интеграции")
	fs.DurationVar(&cfg.GSI.Buffer, "gsi-buffer", cfg.GSI.Buffer, "buffer в конфиге интеграции")
	fs.DurationVar(&cfg.GSI.Throttle, "gsi-throttle", cfg.GSI.Throttle, "throttle в конфиге интеграции")
	fs.DurationVar(&cfg.GSI.Heartbeat, "gsi-heartbeat", cfg.GSI.Heartbeat, "heartbeat в конфиге интеграции")
	fs.StringVar(&cfg.GSI.AuthToken, "gsi-auth-token", cfg.GSI.AuthToken, "токен auth.token (опционально)")
	fs.StringSliceVar(&cfg.GSI.Data, "gsi-data", cfg.GSI.Data, "секции данных через запятую")
}

// Validate проверяет значения после наложения всех источников.
func (c *Config) Validate() error {
	var errs []error
	// порт записывается в cfg игры, поэтому 0 (случайный) не допускается
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if err := c.GSI.Validate(); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

// Validate проверяет параметры интеграции.
func (g GSIConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(g.Name) == "" {
		errs = append(errs, errors.New("gsi name must not be empty"))
	}
	if strings.ContainsAny(g.Name, `/\`) {
		errs = append(errs, fmt.Errorf("gsi name %q must not contain path separators", g.Name))
	}
	for _, d := range g.Data {
		if !slices.Contains(DataSections, d) {
			errs = append(errs, fmt.Errorf("unknown gsi data section %q", d))
		}
	}
	return multierr.Combine(errs...)
}
