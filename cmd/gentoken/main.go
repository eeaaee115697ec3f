// Package main issues bearer tokens for the admin sync endpoint.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/narvanalabs/lnsync/internal/auth"
)

func main() {
	subject := flag.String("sub", "operator", "Subject recorded in the token")
	secret := flag.String("secret", "", "Signing secret (or set ADMIN_JWT_SECRET env var)")
	scopes := flag.String("scope", auth.ScopeSyncTrigger, "Space separated scopes to grant")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token lifetime")
	flag.Parse()

	jwtSecret := *secret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("ADMIN_JWT_SECRET")
	}
	if jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: secret required. Use -secret flag or set ADMIN_JWT_SECRET env var")
		fmt.Fprintln(os.Stderr, "Example: go run ./cmd/gentoken -secret 'your-secret-at-least-32-chars-long'")
		os.Exit(1)
	}
	if len(jwtSecret) < 32 {
		fmt.Fprintln(os.Stderr, "Error: secret must be at least 32 characters")
		os.Exit(1)
	}

	svc := auth.NewService(&auth.Config{
		JWTSecret:   []byte(jwtSecret),
		TokenExpiry: *expiry,
	}, nil)
	token, err := svc.GenerateToken(*subject, strings.Fields(*scopes)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
