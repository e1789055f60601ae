package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	Password          string `mapstructure:"password"`
	Port              string `mapstructure:"port"`
	Username          string `mapstructure:"username"`
	DB                string `mapstructure:"db"`
	SSLMODE           string `mapstructure:"SSLMODE"`
	MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	SecretKey       string        `mapstructure:"secretKey"`
	Issuer          string        `mapstructure:"issuer"`
	Audience        string        `mapstructure:"audience"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	CookieName      string        `mapstructure:"cookieName"`
	CookieSecure    bool          `mapstructure:"cookieSecure"`
	SessionStoreKey string        `mapstructure:"sessionStoreKey"`
}

type EmailConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	SenderName string `mapstructure:"senderName"`
	From       string `mapstructure:"from"`
}

// EncryptionConfig selects how payout fields are sealed. With KMS disabled the
// local passphrase is used.
type EncryptionConfig struct {
	LocalKey string `mapstructure:"localKey"`
	KMS      struct {
		Enabled bool   `mapstructure:"enabled"`
		KeyID   string `mapstructure:"keyID"`
		Region  string `mapstructure:"region"`
	} `mapstructure:"kms"`
}

// StorageConfig points document blobs at S3 when a bucket is set and at
// DocumentsDir otherwise.
type StorageConfig struct {
	DocumentsDir string `mapstructure:"documentsDir"`
	PagesDir     string `mapstructure:"pagesDir"`
	S3           struct {
		Bucket string `mapstructure:"bucket"`
		Region string `mapstructure:"region"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"s3"`
}

type FeaturesConfig struct {
	ExperimentalBrandPersist bool `mapstructure:"experimentalBrandPersist"`
}

type OAuthConfig struct {
	Google struct {
		ClientID     string `mapstructure:"clientID"`
		ClientSecret string `mapstructure:"clientSecret"`
		CallbackURL  string `mapstructure:"callbackURL"`
	} `mapstructure:"google"`
}

type RateLimitConfig struct {
	AuthPerMinute int  `mapstructure:"authPerMinute"`
	AuthBurst     int  `mapstructure:"authBurst"`
	FailOpen      bool `mapstructure:"failOpen"`
}

type Config struct {
	Mode         string `mapstructure:"mode"`
	Dotenv       string `mapstructure:"dotenv"`
	Repositories struct {
		Postgres PostgresConfig `mapstructure:"postgres"`
		Redis    RedisConfig    `mapstructure:"redis"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
		CorsOrigins []string      `mapstructure:"corsOrigins"`
	} `mapstructure:"server"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Email      EmailConfig      `mapstructure:"email"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Features   FeaturesConfig   `mapstructure:"features"`
	OAuth      OAuthConfig      `mapstructure:"oauth"`
	RateLimit  RateLimitConfig  `mapstructure:"rateLimit"`
}

// InitConfig loads config.yml from the usual locations, falling back to the
// embedded copy. Any key can be overridden from the environment, e.g.
// JWT_SECRETKEY or REPOSITORIES_POSTGRES_HOST.
func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")
	v.AddConfigPath("/usr/local/bin")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	// APP_ENV is the conventional switch for the logger and health output.
	if env := v.GetString("APP_ENV"); env != "" {
		v.Set("mode", env)
	}
	// Matches the flag name used by deployments.
	if v.IsSet("EXPERIMENTAL_BRAND_PERSIST") {
		v.Set("features.experimentalBrandPersist", v.GetBool("EXPERIMENTAL_BRAND_PERSIST"))
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// IsDevelopment reports whether the process runs in a local/dev mode.
func (c Config) IsDevelopment() bool {
	return c.Mode == "" || c.Mode == "development" || c.Mode == "dev"
}
