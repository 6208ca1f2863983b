// Command devtoken mints an access token accepted by a local review service.
//
//	go run ./services/review/cmd/devtoken -user u1 -name Amina -country MA
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/moroccoguide/platform/pkg/auth"
	"github.com/moroccoguide/platform/services/review/internal/config"
)

func main() {
	userID := flag.String("user", "dev-user", "user id (subject)")
	name := flag.String("name", "Dev User", "display name")
	avatar := flag.String("avatar", "", "avatar URL")
	country := flag.String("country", "", "country code")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !cfg.IsDevelopment() {
		slog.Error("devtoken only runs with ENVIRONMENT=development")
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, *ttl).
		GenerateAccessToken(*userID, *name, *avatar, *country)
	if err != nil {
		slog.Error("failed to sign token", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Println(token)
}
