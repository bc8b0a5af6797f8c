package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	AllowedOrigin string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InventoryCacheTTLSeconds int
	OracleTimeoutMS          int
	DefaultLocation          string
	SeedWorkbook             string

	AuthSecret            string
	AccessTokenTTLMinutes int

	// Oracle client settings used by the cart grid terminal.
	OracleURL      string
	OracleUsername string
	OraclePassword string

	AllowLabelEdit      bool
	LiveUpdate          bool
	AllocationExactSum  bool
	PriceWarningSeconds int
	LogLevel            string
	// LogFile redirects logs away from stderr; the cart grid needs this
	// because it owns the terminal.
	LogFile        string
	ConfigFileUsed string
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"ALLOWED_ORIGIN":              "http://127.0.0.1:3000",
	"REDIS_DB":                    0,
	"INVENTORY_CACHE_TTL_SECONDS": 30,
	"ORACLE_TIMEOUT_MS":           1500,
	"DEFAULT_LOCATION":            "Stores - CP",
	"ACCESS_TOKEN_TTL_MINUTES":    480,
	"ORACLE_URL":                  "http://127.0.0.1:8080",
	"ALLOW_LABEL_EDIT":            false,
	"LIVE_UPDATE":                 true,
	"ALLOCATION_EXACT_SUM":        true,
	"PRICE_WARNING_SECONDS":       4,
	"LOG_LEVEL":                   "info",
}

// Load reads settings from the environment and, when CENTROPOS_CONFIG names a
// file, from that file. Environment values win. Load never fails: unreadable
// files are ignored and bad numbers fall back to defaults.
func Load() Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	used := ""
	if path := strings.TrimSpace(os.Getenv("CENTROPOS_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err == nil {
			used = v.ConfigFileUsed()
		}
	}

	return Config{
		Port:                     v.GetString("PORT"),
		AllowedOrigin:            v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:              strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisAddr:                strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:            v.GetString("REDIS_PASSWORD"),
		RedisDB:                  nonNegative(v, "REDIS_DB"),
		InventoryCacheTTLSeconds: positive(v, "INVENTORY_CACHE_TTL_SECONDS"),
		OracleTimeoutMS:          positive(v, "ORACLE_TIMEOUT_MS"),
		DefaultLocation:          strings.TrimSpace(v.GetString("DEFAULT_LOCATION")),
		SeedWorkbook:             strings.TrimSpace(v.GetString("SEED_WORKBOOK")),
		AuthSecret:               strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes:    positive(v, "ACCESS_TOKEN_TTL_MINUTES"),
		OracleURL:                strings.TrimRight(strings.TrimSpace(v.GetString("ORACLE_URL")), "/"),
		OracleUsername:           strings.TrimSpace(v.GetString("ORACLE_USERNAME")),
		OraclePassword:           v.GetString("ORACLE_PASSWORD"),
		AllowLabelEdit:           v.GetBool("ALLOW_LABEL_EDIT"),
		LiveUpdate:               v.GetBool("LIVE_UPDATE"),
		AllocationExactSum:       v.GetBool("ALLOCATION_EXACT_SUM"),
		PriceWarningSeconds:      nonNegative(v, "PRICE_WARNING_SECONDS"),
		LogLevel:                 strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFile:                  strings.TrimSpace(v.GetString("LOG_FILE")),
		ConfigFileUsed:           used,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutMS) * time.Millisecond
}

func (c Config) InventoryCacheTTL() time.Duration {
	return time.Duration(c.InventoryCacheTTLSeconds) * time.Second
}

func (c Config) PriceWarningDuration() time.Duration {
	return time.Duration(c.PriceWarningSeconds) * time.Second
}

func positive(v *viper.Viper, key string) int {
	return intAtLeast(v, key, 1)
}

func nonNegative(v *viper.Viper, key string) int {
	return intAtLeast(v, key, 0)
}

func intAtLeast(v *viper.Viper, key string, floor int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || n < floor {
		return defaults[key].(int)
	}
	return n
}
