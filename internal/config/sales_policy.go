package config

import (
	"errors"
	"io/fs"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PaymentMethodCash          = "cash"
	PaymentMethodCard          = "card"
	PaymentMethodTransfer      = "transfer"
	PaymentMethodMobilePayment = "mobile_payment"
	PaymentMethodCredit        = "credit"
)

// SalesPolicy is the operator-tunable part of the sale pipeline.
type SalesPolicy struct {
	PaymentMethods  []string `mapstructure:"paymentMethods"`
	MaxLines        int      `mapstructure:"maxLines"`
	MaxLineQuantity int64    `mapstructure:"maxLineQuantity"`
	MaxNotesLength  int      `mapstructure:"maxNotesLength"`
}

func DefaultSalesPolicy() SalesPolicy {
	return SalesPolicy{
		PaymentMethods: []string{
			PaymentMethodCash,
			PaymentMethodCard,
			PaymentMethodTransfer,
			PaymentMethodMobilePayment,
			PaymentMethodCredit,
		},
		MaxLines:        200,
		MaxLineQuantity: 100_000,
		MaxNotesLength:  1000,
	}
}

// AllowsPaymentMethod reports whether method is enabled. Matching ignores case.
func (p SalesPolicy) AllowsPaymentMethod(method string) bool {
	method = strings.ToLower(strings.TrimSpace(method))
	for _, allowed := range p.PaymentMethods {
		if strings.ToLower(strings.TrimSpace(allowed)) == method {
			return true
		}
	}
	return false
}

type SalesPolicyHolder struct {
	current atomic.Value // holds SalesPolicy
}

// NewStaticSalesPolicyHolder returns a holder that never reloads.
func NewStaticSalesPolicyHolder(policy SalesPolicy) *SalesPolicyHolder {
	holder := &SalesPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewSalesPolicyHolder(cfg Config, logger *zap.Logger) (*SalesPolicyHolder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sales.policy")

	v := viper.New()

	if path := strings.TrimSpace(cfg.Sales.PolicyPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sales")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/pos")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSalesPolicy()
	v.SetDefault("sales.paymentMethods", defaults.PaymentMethods)
	v.SetDefault("sales.maxLines", defaults.MaxLines)
	v.SetDefault("sales.maxLineQuantity", defaults.MaxLineQuantity)
	v.SetDefault("sales.maxNotesLength", defaults.MaxNotesLength)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		watch = false
	}

	var policy SalesPolicy
	if err := v.UnmarshalKey("sales", &policy); err != nil {
		return nil, err
	}
	policy = withPolicyDefaults(policy)
	if err := validateSalesPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticSalesPolicyHolder(policy)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SalesPolicy
		if err := v.UnmarshalKey("sales", &updated); err != nil {
			logger.Warn("reload failed", zap.Error(err))
			return
		}
		updated = withPolicyDefaults(updated)
		if err := validateSalesPolicy(updated); err != nil {
			logger.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		logger.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SalesPolicyHolder) Get() SalesPolicy {
	if h == nil {
		return DefaultSalesPolicy()
	}
	policy, ok := h.current.Load().(SalesPolicy)
	if !ok {
		return DefaultSalesPolicy()
	}
	return policy
}

// withPolicyDefaults fills keys a partial file left unset; viper does not merge
// defaults below a nested key.
func withPolicyDefaults(policy SalesPolicy) SalesPolicy {
	defaults := DefaultSalesPolicy()
	if policy.PaymentMethods == nil {
		policy.PaymentMethods = defaults.PaymentMethods
	}
	if policy.MaxLines == 0 {
		policy.MaxLines = defaults.MaxLines
	}
	if policy.MaxLineQuantity == 0 {
		policy.MaxLineQuantity = defaults.MaxLineQuantity
	}
	if policy.MaxNotesLength == 0 {
		policy.MaxNotesLength = defaults.MaxNotesLength
	}
	return policy
}

func validateSalesPolicy(policy SalesPolicy) error {
	if len(policy.PaymentMethods) == 0 {
		return errors.New("sales.paymentMethods cannot be empty")
	}
	if policy.MaxLines <= 0 {
		return errors.New("sales.maxLines must be positive")
	}
	if policy.MaxLineQuantity <= 0 {
		return errors.New("sales.maxLineQuantity must be positive")
	}
	return nil
}
