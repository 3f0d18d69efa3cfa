package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tokenimages/pkg/auth"
	"tokenimages/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored Magic Eden API key",
	Long: `Manage stored Magic Eden API keys.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - MAGIC_EDEN_API_KEY, read only`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an API key",
	Example: `  # Store the default key
  tokenimages auth login

  # Store a second key under a name, use it with --account
  tokenimages auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored API keys",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

// stdin is shared so prompts do not lose buffered input
var stdin = bufio.NewReader(os.Stdin)

func credentialName(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultName
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := credentialName(args)
	auth.ShowAPIKeyGuide(ui.Output)
	fmt.Fprintln(ui.Output)

	if existing, _ := manager.Retrieve(name); existing != nil && !existing.LastModified.IsZero() {
		fmt.Fprintf(ui.Output, "A key named '%s' already exists. Replace it? (y/N): ", name)
		answer, _ := stdin.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
			return nil
		}
	}

	fmt.Fprint(ui.Output, "API key (input is hidden): ")
	key, err := readSecret()
	fmt.Fprintln(ui.Output)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if key == "" {
		return errors.New("API key is required")
	}

	if err := manager.Store(&auth.Credential{Name: name, APIKey: key}); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Stored key '%s' (%s)", name, auth.MaskKey(key)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := credentialName(args)
	if err := manager.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed key '%s'", name))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintWarning("No API key stored", "run 'tokenimages auth login'")
		return nil
	}

	for _, cred := range creds {
		s := auth.Sanitize(cred)
		source := "stored " + s.LastModified.Format("2006-01-02 15:04")
		if s.LastModified.IsZero() {
			source = "from " + auth.APIKeyEnv
		}
		fmt.Fprintf(ui.Output, "%s  %s  %s\n", ui.Cyan(s.Name), s.APIKey, ui.Dim(source))
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
