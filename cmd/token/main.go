// Command token issues an access token for an operator or an integration.
//
//	go run ./cmd/token -user 0190... -role payroll_manager
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cmlabs-hris/payroll-engine/internal/config"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
)

func main() {
	userID := flag.String("user", "", "user id recorded as the actor")
	roleName := flag.String("role", string(auth.RolePayrollOfficer), "admin, payroll_manager or payroll_officer")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	role, err := auth.ParseRole(*roleName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	token, expiresAt, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration).GenerateAccessToken(*userID, role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error generating token:", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %d\n", expiresAt)
}
