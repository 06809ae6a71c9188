package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	LogFormat   string
	Storage     string // memory or postgres
	SeedFile    string

	Server struct {
		Port        string
		PublicURL   string // scheme and host Twilio signs against, when behind a proxy
		OperatorKey string
	}
	DB struct {
		Host                   string
		Port                   string
		User                   string
		Password               string
		Name                   string
		SSLMode                string
		InstanceConnectionName string
	}
	Twilio struct {
		AccountSID        string
		AuthToken         string
		WhatsAppFrom      string
		ValidateSignature bool
	}
	Session struct {
		Timeout       time.Duration
		SweepInterval time.Duration
		InactiveAfter time.Duration
	}
	Cart struct {
		ExpireAfter time.Duration
	}
	Catalog struct {
		MinStock    float64
		DefaultRate float64
	}
	Checkout struct {
		DefaultIDLetter string
	}
}

// Load loads the configuration from .env, an optional config.yaml and the environment
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	// CHATBOT_SESSION_TIMEOUT overrides Session.Timeout
	v.SetEnvPrefix("chatbot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Environment", "development")
	v.SetDefault("LogFormat", "json")
	v.SetDefault("Storage", "postgres")
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("DB.Host", "localhost")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.User", "postgres")
	v.SetDefault("DB.Name", "ventas")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("Twilio.ValidateSignature", true)
	v.SetDefault("Session.Timeout", 30*time.Minute)
	v.SetDefault("Session.SweepInterval", 5*time.Minute)
	v.SetDefault("Session.InactiveAfter", 24*time.Hour)
	v.SetDefault("Cart.ExpireAfter", 72*time.Hour)
	v.SetDefault("Catalog.MinStock", 0)
	v.SetDefault("Catalog.DefaultRate", 1)
	v.SetDefault("Checkout.DefaultIDLetter", "V")
}

// bindLegacyEnv keeps the unprefixed variable names used by existing deployments
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("Server.Port", "PORT")
	_ = v.BindEnv("Server.PublicURL", "PUBLIC_URL")
	_ = v.BindEnv("Server.OperatorKey", "OPERATOR_API_KEY")
	_ = v.BindEnv("Environment", "ENVIRONMENT")
	_ = v.BindEnv("DB.User", "DB_USER")
	_ = v.BindEnv("DB.Password", "DB_PASS")
	_ = v.BindEnv("DB.Name", "DB_NAME")
	_ = v.BindEnv("DB.Host", "DB_HOST")
	_ = v.BindEnv("DB.InstanceConnectionName", "INSTANCE_CONNECTION_NAME")
	_ = v.BindEnv("Twilio.AccountSID", "TWILIO_ACCOUNT_SID")
	_ = v.BindEnv("Twilio.AuthToken", "TWILIO_AUTH_TOKEN")
	_ = v.BindEnv("Twilio.WhatsAppFrom", "TWILIO_WHATSAPP_FROM")
}

// TwilioConfigured reports whether outbound delivery can be enabled
func (c *Config) TwilioConfigured() bool {
	return c.Twilio.AccountSID != "" && c.Twilio.AuthToken != "" && c.Twilio.WhatsAppFrom != ""
}

// DSN builds the PostgreSQL connection string, using the Cloud SQL socket when configured
func (c *Config) DSN() string {
	if c.DB.InstanceConnectionName != "" {
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			c.DB.InstanceConnectionName, c.DB.User, c.DB.Password, c.DB.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DB.Host, c.DB.User, c.DB.Password, c.DB.Name, c.DB.Port, c.DB.SSLMode)
}
