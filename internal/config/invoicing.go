package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/qrdine/internal/invoice/format"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// InvoicingConfig holds operator-tunable invoicing settings.
type InvoicingConfig struct {
	NumberPrefix       string  `mapstructure:"numberPrefix"`
	NumberWidth        int     `mapstructure:"numberWidth"`
	ReconcileTolerance float64 `mapstructure:"reconcileTolerance"`
	InvoiceOnComplete  bool    `mapstructure:"invoiceOnComplete"`
}

func DefaultInvoicingConfig() InvoicingConfig {
	return InvoicingConfig{
		NumberPrefix:       format.DefaultPrefix,
		NumberWidth:        format.DefaultWidth,
		ReconcileTolerance: 0,
		InvoiceOnComplete:  true,
	}
}

var defaultInvoicingPaths = []string{
	"/var/lib/qrdine/config",
	"/etc/qrdine",
	".",
}

type InvoicingConfigHolder struct {
	current atomic.Value // holds InvoicingConfig
}

// NewInvoicingConfigHolder loads invoicing.yml from the standard locations.
func NewInvoicingConfigHolder(log *zap.Logger) (*InvoicingConfigHolder, error) {
	return LoadInvoicingConfig(defaultInvoicingPaths, log)
}

// NewStaticInvoicingConfig returns a holder that never reloads.
func NewStaticInvoicingConfig(cfg InvoicingConfig) *InvoicingConfigHolder {
	holder := &InvoicingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// LoadInvoicingConfig reads invoicing.yml from the given paths, falling back to
// defaults when no file exists, and watches the file for changes.
func LoadInvoicingConfig(paths []string, log *zap.Logger) (*InvoicingConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.invoicing")

	v := viper.New()
	v.SetConfigName("invoicing")
	v.SetConfigType("yml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("QRDINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultInvoicingConfig()
	v.SetDefault("invoicing.numberPrefix", defaults.NumberPrefix)
	v.SetDefault("invoicing.numberWidth", defaults.NumberWidth)
	v.SetDefault("invoicing.reconcileTolerance", defaults.ReconcileTolerance)
	v.SetDefault("invoicing.invoiceOnComplete", defaults.InvoiceOnComplete)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg := DefaultInvoicingConfig()
	if err := v.UnmarshalKey("invoicing", &cfg); err != nil {
		return nil, err
	}
	if err := validateInvoicingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &InvoicingConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultInvoicingConfig()
		if err := v.UnmarshalKey("invoicing", &updated); err != nil {
			log.Warn("invoicing config reload failed", zap.Error(err))
			return
		}
		if err := validateInvoicingConfig(updated); err != nil {
			log.Warn("invalid invoicing config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("invoicing config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *InvoicingConfigHolder) Get() InvoicingConfig {
	if h == nil {
		return DefaultInvoicingConfig()
	}
	return h.current.Load().(InvoicingConfig)
}

func validateInvoicingConfig(cfg InvoicingConfig) error {
	if cfg.NumberWidth < 1 || cfg.NumberWidth > 12 {
		return errors.New("invoicing.numberWidth must be between 1 and 12")
	}
	if cfg.ReconcileTolerance < 0 {
		return errors.New("invoicing.reconcileTolerance cannot be negative")
	}
	if _, err := format.FormatInvoiceNumber(cfg.NumberPrefix, cfg.NumberWidth, time.Now(), 1); err != nil {
		return err
	}
	return nil
}
