package app

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"parley/internal/crypto"
	"parley/internal/domain"
)

const envPrefix = "PARLEY"

// ServerConfig configures the relay daemon.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	DBPath         string        `mapstructure:"db_path"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	RSABits        int           `mapstructure:"rsa_bits"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Metrics        bool          `mapstructure:"metrics"`
}

// ClientConfig configures the CLI.
type ClientConfig struct {
	Home       string `mapstructure:"home"`
	ServerURL  string `mapstructure:"server"`
	Passphrase string `mapstructure:"passphrase"`
	Verbose    bool   `mapstructure:"verbose"`
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":5001")
	v.SetDefault("db_path", "parley.db")
	v.SetDefault("token_ttl", "168h")
	v.SetDefault("rsa_bits", crypto.DefaultRSABits)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("metrics", true)
	_ = v.BindEnv("jwt_secret")
}

// NewViper returns a viper instance reading PARLEY_* environment variables.
// A .env file in the working directory is loaded first when present.
func NewViper() *viper.Viper {
	_ = godotenv.Load()
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadServerConfig reads the server config from file (or relay.yaml in the
// working directory or ./config when file is empty) and the environment.
func LoadServerConfig(v *viper.Viper, file string) (ServerConfig, error) {
	setServerDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return ServerConfig{}, domain.Wrap(domain.CodeInvalidArgument, "read config", err)
		}
	}

	var c ServerConfig
	if err := v.Unmarshal(&c); err != nil {
		return ServerConfig{}, domain.Wrap(domain.CodeInvalidArgument, "parse config", err)
	}
	return c, c.Validate()
}

// Validate rejects configs the server cannot start with.
func (c ServerConfig) Validate() error {
	switch {
	case c.Addr == "":
		return domain.InvalidArg("config: addr is required")
	case c.DBPath == "":
		return domain.InvalidArg("config: db_path is required")
	case len(c.JWTSecret) < 16:
		return domain.InvalidArg("config: jwt_secret must be at least 16 characters")
	case c.TokenTTL <= 0:
		return domain.InvalidArg("config: token_ttl must be positive")
	case c.RSABits < 2048:
		return domain.InvalidArg("config: rsa_bits must be at least 2048")
	}
	return nil
}

// LoadClientConfig reads the client settings bound on v.
func LoadClientConfig(v *viper.Viper) (ClientConfig, error) {
	var c ClientConfig
	if err := v.Unmarshal(&c); err != nil {
		return ClientConfig{}, domain.Wrap(domain.CodeInvalidArgument, "parse client config", err)
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.ServerURL == "" {
		return ClientConfig{}, domain.InvalidArg("server URL is required (--server or PARLEY_SERVER)")
	}
	return c, nil
}
