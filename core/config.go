package core

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	Debug    bool
	TestMode bool
	AppName  string
	Build    string

	FrontendBaseURL string

	Server struct {
		Addr            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	AutoSave struct {
		Interval      time.Duration
		ForceCooldown time.Duration
	}

	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	RollbarToken string
}

func (c *Config) DatabaseAddress() string {
	return net.JoinHostPort(c.Database.Host, c.Database.Port)
}

// NewConfig loads the app configuration from the environment,
// optionally backed by a config/.env.<env> file.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Maabara")
	v.SetDefault("build", "dev")
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", "localhost:4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "maabara")
	v.SetDefault("dbUser", "")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTls", true)
	v.SetDefault("autosaveInterval", 30*time.Second)
	v.SetDefault("autosaveForceCooldown", 10*time.Second)
	v.SetDefault("geminiModel", "gemini-2.0-flash")
	v.SetDefault("openaiModel", "gpt-4o-mini")

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		Build:           v.GetString("build"),
		FrontendBaseURL: v.GetString("frontendBaseUrl"),
		GeminiAPIKey:    v.GetString("geminiApiKey"),
		GeminiModel:     v.GetString("geminiModel"),
		OpenAIAPIKey:    v.GetString("openaiApiKey"),
		OpenAIModel:     v.GetString("openaiModel"),
		RollbarToken:    v.GetString("rollbarToken"),
	}
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.DebugHost = v.GetString("serverDebugHost")
	conf.Server.ShutdownTimeout = v.GetDuration("serverShutdownTimeout")
	conf.Database.Engine = v.GetString("dbEngine")
	conf.Database.Host = v.GetString("dbHost")
	conf.Database.Port = v.GetString("dbPort")
	conf.Database.Name = v.GetString("dbName")
	conf.Database.User = v.GetString("dbUser")
	conf.Database.Password = v.GetString("dbPassword")
	conf.Database.AdminUser = v.GetString("dbAdminUser")
	conf.Database.AdminPassword = v.GetString("dbAdminPassword")
	conf.Database.DisableTLS = v.GetBool("dbDisableTls")
	conf.AutoSave.Interval = v.GetDuration("autosaveInterval")
	conf.AutoSave.ForceCooldown = v.GetDuration("autosaveForceCooldown")
	return conf
}

// Getwd returns the current working directory or dies trying.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(fmt.Errorf("config.Getwd: %v", err))
	}
	return wd
}
