package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	BotToken    string
	PollTimeout time.Duration

	DBPath string
	PGDSN  string

	CacheTTL        time.Duration
	RefreshInterval time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration

	HTTPTimeout time.Duration
	HyperionURL string
	BluefinURL  string
	LlamaURL    string
	// LlamaProjects enables the DefiLlama source when non-empty.
	LlamaProjects []string
	MinTVL        float64
	MinVolume     float64

	// EVMRPC enables the on-chain source when set.
	EVMRPC    string
	EVMPools  []string
	EVMPrices map[string]string

	MetricsAddr string
	Out         string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("poll-timeout", 10*time.Second)
	v.SetDefault("db-path", "./data/poolwatch.db")
	v.SetDefault("cache-ttl", time.Minute)
	v.SetDefault("refresh-interval", time.Minute)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("min-tvl", 100_000.0)
	v.SetDefault("min-volume", 50_000.0)
	v.SetDefault("out", "./data/pools.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		BotToken:        v.GetString("bot-token"),
		PollTimeout:     v.GetDuration("poll-timeout"),
		DBPath:          v.GetString("db-path"),
		PGDSN:           v.GetString("pg-dsn"),
		CacheTTL:        v.GetDuration("cache-ttl"),
		RefreshInterval: v.GetDuration("refresh-interval"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		HTTPTimeout:     v.GetDuration("http-timeout"),
		HyperionURL:     v.GetString("hyperion-url"),
		BluefinURL:      v.GetString("bluefin-url"),
		LlamaURL:        v.GetString("llama-url"),
		LlamaProjects:   getStringSlice(v, "llama-projects"),
		MinTVL:          v.GetFloat64("min-tvl"),
		MinVolume:       v.GetFloat64("min-volume"),
		EVMRPC:          v.GetString("evm-rpc"),
		EVMPools:        getStringSlice(v, "evm-pools"),
		EVMPrices:       getStringMap(v, "evm-prices"),
		MetricsAddr:     v.GetString("metrics-addr"),
		Out:             v.GetString("out"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}

// ParsePrices converts a symbol=price map, as configured, into USD
// prices, e.g. {"WETH": "3500"} -> {"WETH": 3500}.
func ParsePrices(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for symbol, value := range raw {
		price, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", symbol, err)
		}
		if price < 0 {
			return nil, fmt.Errorf("price for %s: negative value %v", symbol, price)
		}
		out[strings.ToUpper(strings.TrimSpace(symbol))] = price
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
