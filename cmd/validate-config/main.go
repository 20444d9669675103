package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sundaybox/weekplanner/internal/config"
)

func main() {
	fmt.Println("Validating configuration...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Configuration is invalid:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid.")
	fmt.Printf("  - Gemini API Key: %s\n", maskToken(cfg.GeminiAPIKey))
	fmt.Printf("  - Cart URL: %s\n", valueOrUnset(cfg.CartURL))
	fmt.Printf("  - Plan Owner: %s\n", cfg.Owner)
	fmt.Printf("  - DB Host: %s\n", cfg.DB.Host)
	fmt.Printf("  - DB Port: %s\n", cfg.DB.Port)
	fmt.Printf("  - DB User: %s\n", cfg.DB.User)
	fmt.Printf("  - DB Name: %s\n", cfg.DB.DBName)
	if cfg.Redis.Enabled() {
		fmt.Printf("  - Redis: %s:%s\n", cfg.Redis.Host, cfg.Redis.Port)
	} else {
		fmt.Println("  - Redis: disabled (in-memory sessions)")
	}
	fmt.Printf("  - Session TTL: %v\n", cfg.Session.TTL)
	fmt.Printf("  - Session Sweep Interval: %v\n", cfg.Session.SweepInterval)
	fmt.Printf("  - Seed Duplicate Policy: %s\n", cfg.Seed.DuplicatePolicy)
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)
}

func maskToken(token string) string {
	if token == "" {
		return "<unset>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func valueOrUnset(value string) string {
	if value == "" {
		return "<unset>"
	}
	return value
}
