package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ListingConfig bounds paginated product listings.
type ListingConfig struct {
	DefaultLimit int `mapstructure:"defaultLimit"`
	MaxLimit     int `mapstructure:"maxLimit"`
}

func DefaultListingConfig() ListingConfig {
	return ListingConfig{
		DefaultLimit: 10,
		MaxLimit:     100,
	}
}

type ListingConfigHolder struct {
	current atomic.Value // holds ListingConfig
}

// NewStaticListingConfigHolder returns a holder that never reloads.
func NewStaticListingConfigHolder(cfg ListingConfig) *ListingConfigHolder {
	holder := &ListingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewListingConfigHolder reads catalog.yml when present and watches it for changes.
func NewListingConfigHolder(log *zap.Logger) (*ListingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/catalog")
	v.AddConfigPath(".")

	return newListingConfigHolder(v, log)
}

func newListingConfigHolder(v *viper.Viper, log *zap.Logger) (*ListingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.listing")

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultListingConfig()
	v.SetDefault("listing.defaultLimit", defaults.DefaultLimit)
	v.SetDefault("listing.maxLimit", defaults.MaxLimit)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	cfg, err := readListingConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticListingConfigHolder(cfg)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readListingConfig(v)
		if err != nil {
			log.Warn("listing config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("listing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ListingConfigHolder) Get() ListingConfig {
	if h == nil {
		return DefaultListingConfig()
	}
	return h.current.Load().(ListingConfig)
}

func readListingConfig(v *viper.Viper) (ListingConfig, error) {
	cfg := ListingConfig{
		DefaultLimit: v.GetInt("listing.defaultLimit"),
		MaxLimit:     v.GetInt("listing.maxLimit"),
	}
	if err := validateListingConfig(cfg); err != nil {
		return ListingConfig{}, err
	}
	return cfg, nil
}

func validateListingConfig(cfg ListingConfig) error {
	if cfg.DefaultLimit < 1 {
		return errors.New("listing.defaultLimit must be positive")
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		return errors.New("listing.maxLimit must not be lower than listing.defaultLimit")
	}
	return nil
}
