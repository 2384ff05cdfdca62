package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/npd-client/pkg/nalog"
	"github.com/pigeonworks-llc/npd-client/pkg/nalogerr"
)

var (
	loginINN      string
	loginPassword string
	phoneNumber   string
)

// loginCmd represents the login command.
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with INN and password",
	Long: `Log in with INN and password and store the token bundle.

INN and password default to NALOG_INN and NALOG_PASSWORD.

Example:
  npd login --inn 500100732259`,
	Run: runLogin,
}

// phoneCmd represents the phone command.
var phoneCmd = &cobra.Command{
	Use:   "phone",
	Short: "Log in by phone and SMS code",
	Long: `Request an SMS challenge and verify the code read from stdin.

A wrong code may be retried until the challenge is exhausted.

Example:
  npd phone --phone 79001234567`,
	Run: runPhone,
}

// logoutCmd represents the logout command.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	Run:   runLogout,
}

func init() {
	loginCmd.Flags().StringVar(&loginINN, "inn", "", "Taxpayer INN (default NALOG_INN)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (default NALOG_PASSWORD)")
	phoneCmd.Flags().StringVar(&phoneNumber, "phone", "", "Phone number (default NALOG_PHONE)")
}

func runLogin(cmd *cobra.Command, args []string) {
	e := loadEnv()
	inn := firstNonEmpty(loginINN, e.cfg.Nalog.INN)
	password := firstNonEmpty(loginPassword, e.cfg.Nalog.Password)
	if inn == "" || password == "" {
		exitOnError(errors.New("INN and password are required (flags or NALOG_INN/NALOG_PASSWORD)"), "invalid arguments")
	}

	client := e.client()
	token, err := client.CreateNewAccessToken(cmd.Context(), inn, password)
	exitOnError(err, "login failed")

	slog.Info("Logged in", "inn", token.Profile.INN)
	fmt.Printf("Logged in as %s (%s)\n", token.Profile.DisplayName, token.Profile.INN)
}

func runPhone(cmd *cobra.Command, args []string) {
	e := loadEnv()
	phone := firstNonEmpty(phoneNumber, e.cfg.Nalog.Phone)
	if phone == "" {
		exitOnError(errors.New("phone is required (flag or NALOG_PHONE)"), "invalid arguments")
	}

	auth := e.client().NewPhoneAuthenticator()
	challenge, err := auth.Start(cmd.Context(), phone)
	exitOnError(err, "failed to request SMS code")

	fmt.Printf("SMS code sent, valid until %s\n", challenge.ExpiresAt().Format("15:04:05"))

	token, err := verifyLoop(cmd, auth, bufio.NewReader(cmd.InOrStdin()))
	exitOnError(err, "phone login failed")

	fmt.Printf("Logged in as %s (%s)\n", token.Profile.DisplayName, token.Profile.INN)
}

// verifyLoop prompts for codes until the authenticator succeeds or leaves
// the ChallengeSent state.
func verifyLoop(cmd *cobra.Command, auth *nalog.PhoneAuthenticator, in *bufio.Reader) (*nalog.Token, error) {
	for {
		fmt.Fprint(cmd.OutOrStdout(), "SMS code: ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		code := strings.TrimSpace(line)
		if code == "" && errors.Is(err, io.EOF) {
			return nil, errors.New("no code entered")
		}

		token, verr := auth.Verify(cmd.Context(), code)
		if verr == nil {
			return token, nil
		}
		if auth.State() != nalog.PhoneChallengeSent || !errors.Is(verr, nalogerr.ErrPhone) {
			return nil, verr
		}

		left := nalog.MaxVerifyAttempts - auth.Attempts()
		fmt.Fprintf(cmd.ErrOrStderr(), "Code rejected, %d attempt(s) left\n", left)
	}
}

func runLogout(cmd *cobra.Command, args []string) {
	e := loadEnv()
	exitOnError(e.client().Logout(), "logout failed")
	fmt.Println("Logged out")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
