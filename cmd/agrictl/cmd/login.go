package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agrisense/agrisense/pkg/client"
)

var loginUsername string

// loginCmd authenticates against a server and stores the session.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to an AgriSense server",
	Long: `Authenticate against an AgriSense server and store the session
tokens locally. The password is prompted interactively so it never
appears in shell history.

Example:
  agrictl login --server https://farm.example.com --username admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serverURL == "" && os.Getenv("AGRISENSE_SERVER") == "" {
			return fmt.Errorf("--server is required for login")
		}
		if loginUsername == "" {
			return fmt.Errorf("--username is required")
		}

		c, err := apiClient()
		if err != nil {
			return err
		}

		password, err := promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := c.Login(ctx, loginUsername, password); err != nil {
			if errors.Is(err, client.ErrLoginFailed) {
				return fmt.Errorf("login failed: check username and password")
			}
			return err
		}

		fmt.Printf("Logged in as %s.\n", loginUsername)
		return nil
	},
}

// logoutCmd revokes the session and clears stored credentials.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := c.Logout(ctx); err != nil {
			return err
		}

		fmt.Println("Logged out.")
		return nil
	},
}

// whoamiCmd shows the authenticated user.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the currently authenticated user",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		user, err := c.CurrentUser(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s, role %s)\n", user.Username, user.Email, user.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username to log in as (required)")
	loginCmd.MarkFlagRequired("username")
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	// Check if stdin is a terminal
	fd := syscall.Stdin
	if term.IsTerminal(fd) {
		// Read password without echo
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println() // Add newline after password input
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
