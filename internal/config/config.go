package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
		// Public base URL of the frontend, used to build the
		// verification links embedded in emails.
		FrontendURL string `yaml:"frontend_url"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		UseTLS       bool   `yaml:"use_tls"`
		TemplatesDir string `yaml:"templates_dir"`
	} `yaml:"email"`

	JWT struct {
		Secret string `yaml:"secret"`
		// Session lifetime in hours.
		TTL int `yaml:"ttl"`
	} `yaml:"jwt"`

	Admin struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
}

var AppConfig *Config

// LoadConfig reads config.yaml, or falls back to environment variables when
// DATABASE_URL is set (test/deploy mode). A .env file is honored if present.
func LoadConfig() {
	var cfg Config

	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))
	cfg.Server.FrontendURL = os.Getenv("FRONTEND_URL")
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.Email.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.Email.SMTPPort, _ = strconv.Atoi(os.Getenv("SMTP_PORT"))
	cfg.Email.SMTPUsername = os.Getenv("SMTP_USER")
	cfg.Email.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.Email.FromEmail = os.Getenv("SMTP_FROM")
	cfg.Admin.Email = os.Getenv("ADMIN_EMAIL")
	cfg.Admin.Password = os.Getenv("ADMIN_PASSWORD")

	applyDefaults(&cfg)
	AppConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4000
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = "http://localhost:3000"
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 7 * 24 // 7 days
	}
}

// GetConfig returns the loaded configuration.
func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
