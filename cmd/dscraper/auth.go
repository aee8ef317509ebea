package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"dscraper/pkg/auth"
	"dscraper/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Discord tokens",
	Long: `Manage stored Discord tokens.

Tokens are stored in the system keychain when available and in an encrypted
file otherwise. DSCRAPER_TOKEN is always honoured.

Never share your token or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a Discord token",
	Example: `  # Interactive login
  dscraper auth login

  # Store a token under a name
  dscraper auth login alt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored token",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked tokens",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowTokenExtractionGuide(os.Stdout)

	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}
	if name == "" {
		return errors.New("account name is required")
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\nAccount '%s' already exists. Replace its token? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("\nToken (hidden): ")
	token, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	token = strings.Trim(strings.TrimSpace(token), `"`)
	if len(token) < 20 || strings.ContainsAny(token, " \t") {
		return errors.New("that does not look like a Discord token")
	}

	fmt.Print("User agent (Enter for default): ")
	agent, _ := reader.ReadString('\n')

	account := &auth.Account{Name: name, Token: token, Agent: strings.TrimSpace(agent)}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s (%s)", name, auth.MaskToken(token)))
	fmt.Printf("\nUse it with:\n  dscraper scrape --account %s\n", name)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'dscraper auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   Token: %s\n", sanitized.Token)
		if sanitized.Agent != "" {
			fmt.Printf("   User Agent: %s\n", sanitized.Agent)
		}
		fmt.Printf("   Last Modified: %s\n\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readSecret reads without echo on a terminal and falls back to a plain line
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return string(secret), nil
		}
	}
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return input, nil
}
