package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stackbill/stackbill/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Auth       AuthConfig
	Gateways   GatewaysConfig
	Dunning    DunningConfig
	Currency   CurrencyConfig
	Permission PermissionConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

type AuthConfig struct {
	// ServiceToken is the bearer token for service-to-service calls.
	// Compared constant-time; requests fail with 500 when unset.
	ServiceToken string
	// SessionHeader carries the workspace identity set by the session layer.
	SessionHeader string
}

type GatewaysConfig struct {
	Stripe StripeConfig
	BTCPay BTCPayConfig
}

type StripeConfig struct {
	APIKey        string
	WebhookSecret string
}

type BTCPayConfig struct {
	ServerURL     string
	StoreID       string
	APIKey        string
	WebhookSecret string
}

type DunningConfig struct {
	// RetryScheduleDays are the backoff offsets, in days after the initial
	// failure, at which a failed invoice is retried.
	RetryScheduleDays []int
	MaxAttempts       int
	SuspendAfterDays  int
	CancelAfterDays   int
	MaxPauseCycles    int
}

type CurrencyConfig struct {
	BaseCurrency        string
	ProviderURL         string
	RefreshIntervalMins int
}

type PermissionConfig struct {
	Mode        types.PermissionMode
	TrainingURL string
}

func NewConfig() (*Configuration, error) {
	// Best effort .env load for local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/stackbill")

	v.SetEnvPrefix("STACKBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.RunModeServer))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.maxopenconns", 20)
	v.SetDefault("postgres.maxidleconns", 5)
	v.SetDefault("postgres.connmaxlifetimeminutes", 30)
	v.SetDefault("auth.sessionheader", "X-Workspace-ID")
	v.SetDefault("dunning.retryscheduledays", []int{1, 3, 7})
	v.SetDefault("dunning.maxattempts", 3)
	v.SetDefault("dunning.suspendafterdays", 7)
	v.SetDefault("dunning.cancelafterdays", 14)
	v.SetDefault("dunning.maxpausecycles", 2)
	v.SetDefault("currency.basecurrency", "USD")
	v.SetDefault("currency.refreshintervalmins", 360)
	v.SetDefault("permission.mode", string(types.PermissionModeStrict))
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// and tests. Dunning knobs mirror the production defaults.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.RunModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Auth:       AuthConfig{SessionHeader: "X-Workspace-ID"},
		Dunning: DunningConfig{
			RetryScheduleDays: []int{1, 3, 7},
			MaxAttempts:       3,
			SuspendAfterDays:  7,
			CancelAfterDays:   14,
			MaxPauseCycles:    2,
		},
		Currency: CurrencyConfig{
			BaseCurrency:        "USD",
			RefreshIntervalMins: 360,
		},
		Permission: PermissionConfig{Mode: types.PermissionModeStrict},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
