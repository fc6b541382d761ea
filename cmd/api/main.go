package main

import (
	"os"

	"github.com/spf13/cobra"

	_ "github.com/redmonkez12/ms-auth/docs" // Swagger docs
)

// @title           ms-auth
// @version         1.0
// @description     User authentication service: signup, login, logout, session profile and password reset by OTP or token.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd creates the root command. Without a subcommand it serves the API.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ms-auth",
		Short:        "ms-auth - user authentication service",
		Long:         `ms-auth registers users, issues session tokens and resets passwords by emailed OTP or signed token.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUsersCmd())

	return cmd
}
