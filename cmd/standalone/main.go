package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/David-I7/graphcalculator-sub001/core"
	"github.com/David-I7/graphcalculator-sub001/core/strategies"
	"github.com/David-I7/graphcalculator-sub001/storage"
)

type AppConfig struct {
	Core   *core.Config             `yaml:",inline"`
	Google *strategies.GoogleConfig `yaml:"google,omitempty"`

	DB   DBConfig `yaml:"db"`
	Port string   `yaml:"port"`
}

type DBConfig struct {
	Type       string `yaml:"type"`
	SQLitePath string `yaml:"sqlite_path"`
}

func main() {
	configPath := getEnv("CONFIG_PATH", "config.yaml")
	appConfig := loadConfigFromYAML(configPath)

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		appConfig.Core.JWTSecret = secret
	}
	if appConfig.Core.JWTSecret == "" {
		log.Fatal("JWT secret is not configured")
	}

	repo := initRepository(appConfig.DB)
	factory := initStrategies(appConfig)

	authService := core.NewAuthService(repo, appConfig.Core, factory, &logEmailSender{})
	defer authService.Close()

	server := core.NewServer(authService)

	http.HandleFunc("/auth/url", server.HandleAuthURL)
	http.HandleFunc("/auth/complete", server.HandleCompleteLogin)
	http.HandleFunc("/auth/claim", server.HandleClaimLogin)
	http.HandleFunc("/signup", server.HandleSignup)
	http.HandleFunc("/confirm", server.HandleConfirmEmail)
	http.HandleFunc("/login", server.HandleLogin)
	http.HandleFunc("/password-reset", server.HandleRequestPasswordReset)
	http.HandleFunc("/password-reset/confirm", server.HandleResetPassword)
	http.HandleFunc("/account/delete", server.HandleDeleteAccount)
	http.HandleFunc("/health", server.HandleHealth)

	log.Printf("Starting auth server on port %s", appConfig.Port)
	log.Printf("Configured providers: %v", factory.Providers())

	if err := http.ListenAndServe(":"+appConfig.Port, nil); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func loadConfigFromYAML(path string) *AppConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file %s: %v", path, err)
	}

	var config AppConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		log.Fatalf("Failed to parse config file: %v", err)
	}
	if config.Core == nil {
		config.Core = &core.Config{}
	}

	return &config
}

func initRepository(dbConfig DBConfig) core.Repository {
	switch strings.ToLower(dbConfig.Type) {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(dbConfig.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite repository: %v", err)
		}
		log.Printf("Using SQLite database: %s", dbConfig.SQLitePath)
		return repo

	case "mock":
		log.Println("Using mock repository (in-memory)")
		return storage.NewMockRepository()

	default:
		log.Fatalf("Unsupported DB type: %s (supported: sqlite, mock)", dbConfig.Type)
		return nil
	}
}

func initStrategies(cfg *AppConfig) *core.StrategyFactory {
	var list []core.Strategy

	if cfg.Google != nil {
		google, err := strategies.NewGoogleStrategy(context.Background(), cfg.Google)
		if err != nil {
			log.Fatalf("Failed to initialize Google strategy: %v", err)
		}
		list = append(list, google)
		log.Println("Google strategy initialized")
	}

	return core.NewStrategyFactory(list...)
}

// logEmailSender stands in for the real email collaborator, which lives
// outside this service. It writes the messages to the log.
type logEmailSender struct{}

func (s *logEmailSender) SendConfirmationCode(ctx context.Context, email string, code string) error {
	log.Printf("email to %s: confirmation code %s", email, code)
	return nil
}

func (s *logEmailSender) SendPasswordResetLink(ctx context.Context, email string, token string) error {
	log.Printf("email to %s: password reset token %s", email, token)
	return nil
}

func (s *logEmailSender) SendAccountDeletionLink(ctx context.Context, email string, token string) error {
	log.Printf("email to %s: account deletion token %s", email, token)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
