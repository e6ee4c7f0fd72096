package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bitlum/cli/internal/api"
	"github.com/bitlum/cli/internal/store"
	"github.com/bitlum/cli/pkg/table"
	"github.com/bitlum/cli/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// AccountService is the part of the accounts state the auth commands use.
type AccountService interface {
	Login(ctx context.Context, email, password string) (api.Account, error)
	SignUp(ctx context.Context, email, password string) (api.Account, error)
	Refresh(ctx context.Context, opts ...store.FetchOption) (api.Account, error)
	SignOut()
	IsAuthenticated() bool
	SessionExpiry() (time.Time, bool)
}

// AuthCmd handles sign-in, sign-up and the session.
type AuthCmd struct {
	accounts AccountService
}

// CredentialsInput holds the email and password of login and signup.
type CredentialsInput struct {
	Email    string
	Password string
}

// Login signs in.
func (c AuthCmd) Login(ctx context.Context, in CredentialsInput) error {
	acc, err := c.accounts.Login(ctx, in.Email, in.Password)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	pterm.Success.Printf("Signed in as %s\n", acc.Email)
	return nil
}

// SignUp creates an account and signs in.
func (c AuthCmd) SignUp(ctx context.Context, in CredentialsInput) error {
	acc, err := c.accounts.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	pterm.Success.Printf("Account created, signed in as %s\n", acc.Email)
	return nil
}

// Logout drops the session and everything fetched with it.
func (c AuthCmd) Logout() error {
	if !c.accounts.IsAuthenticated() {
		pterm.Info.Println("Not signed in")
		return nil
	}
	c.accounts.SignOut()
	pterm.Success.Println("Signed out")
	return nil
}

// WhoamiInput holds input for whoami.
type WhoamiInput struct {
	Output string
}

// Whoami refreshes and prints the signed-in account.
func (c AuthCmd) Whoami(ctx context.Context, in WhoamiInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	if !c.accounts.IsAuthenticated() {
		pterm.Info.Println("Not signed in. Run `bitlum login` first.")
		return nil
	}
	acc, err := c.accounts.Refresh(ctx, store.WithLocalLifetime(0))
	if err != nil {
		return util.CleanedUpAPIError{Err: err}
	}
	acc.Token = ""

	if in.Output == "json" {
		return util.PrintPrettyJSON(acc)
	}

	rows := table.PropertyRows()
	rows = append(rows, []string{"Email", util.OrDash(acc.Email)})
	rows = append(rows, []string{"Account", util.OrDash(acc.Auid)})
	if acc.CreatedAt > 0 {
		rows = append(rows, []string{"Created", util.FormatMillis(acc.CreatedAt)})
	}
	if exp, ok := c.accounts.SessionExpiry(); ok {
		rows = append(rows, []string{"Session expires", util.FormatLocal(exp)})
	}
	assets := make([]string, 0, len(acc.Balances))
	for asset := range acc.Balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		b := acc.Balances[asset]
		value := fmt.Sprintf("%v", b.Available)
		if b.Pending != 0 {
			value += fmt.Sprintf(" (pending %v)", b.Pending)
		}
		rows = append(rows, []string{"Balance " + asset, value})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your Bitlum account",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a Bitlum account",
	Args:  cobra.NoArgs,
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().String("email", "", "Account email (prompted when omitted)")
		c.Flags().String("password", "", "Account password (prompted when omitted)")
	}
	whoamiCmd.Flags().StringP("output", "o", "", "Output format: json for raw API response")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
}

func credentialsFromFlags(cmd *cobra.Command) (CredentialsInput, error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	var err error
	if email == "" {
		if email, err = pterm.DefaultInteractiveTextInput.Show("Email"); err != nil {
			return CredentialsInput{}, err
		}
	}
	if password == "" {
		if password, err = pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password"); err != nil {
			return CredentialsInput{}, err
		}
	}
	return CredentialsInput{Email: email, Password: password}, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	in, err := credentialsFromFlags(cmd)
	if err != nil {
		return err
	}
	c := AuthCmd{accounts: getApp(cmd).state.Accounts}
	return c.Login(cmd.Context(), in)
}

func runSignup(cmd *cobra.Command, args []string) error {
	in, err := credentialsFromFlags(cmd)
	if err != nil {
		return err
	}
	c := AuthCmd{accounts: getApp(cmd).state.Accounts}
	return c.SignUp(cmd.Context(), in)
}

func runLogout(cmd *cobra.Command, args []string) error {
	c := AuthCmd{accounts: getApp(cmd).state.Accounts}
	return c.Logout()
}

func runWhoami(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	c := AuthCmd{accounts: getApp(cmd).state.Accounts}
	return c.Whoami(cmd.Context(), WhoamiInput{Output: output})
}
