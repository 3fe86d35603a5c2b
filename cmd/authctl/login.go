package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/jrsteele09/go-auth-session/auth"
	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/spf13/cobra"
)

type loginOptions struct {
	identifier string
	password   string
	code       string
	remember   bool
}

var loginFlags loginOptions

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Long: `Log in with a username or email. Accounts with two-factor authentication are
asked for the code from their authenticator app before the challenge expires.
Missing values are read from stdin.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := withApp(ctx, func(a *app) int {
			return runLogin(ctx, a, loginFlags, os.Stdin, os.Stdout)
		})
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginFlags.identifier, "user", "u", "", "username or email")
	loginCmd.Flags().StringVarP(&loginFlags.password, "password", "p", "", "password (prompted when empty)")
	loginCmd.Flags().StringVar(&loginFlags.code, "code", "", "two-factor code (prompted when needed and empty)")
	loginCmd.Flags().BoolVar(&loginFlags.remember, "remember", false, "ask for a long lived session")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(ctx context.Context, a *app, opts loginOptions, in io.Reader, w io.Writer) int {
	reader := bufio.NewReader(in)
	if opts.identifier == "" {
		opts.identifier = prompt(reader, w, "Username or email: ")
	}
	if opts.password == "" {
		opts.password = prompt(reader, w, "Password: ")
	}

	res, err := a.service.Login(ctx, auth.LoginInput{
		Identifier: opts.identifier,
		Password:   opts.password,
		RememberMe: opts.remember,
	})
	if err != nil {
		fmt.Fprintf(w, "Error: %s\n", apperrors.Message(err))
		return 1
	}
	if res.Requires2FA {
		if code := runTwoFactor(ctx, a, opts.code, reader, w, res.ExpiresIn); code != 0 {
			return code
		}
	}

	st := a.service.State()
	fmt.Fprintf(w, "Logged in as %s (%s)\n", st.User.DisplayName(), st.User.UserType)
	return 0
}

// runTwoFactor prompts for codes until one is accepted, the challenge ends or
// ctx is cancelled. A code given up front gets a single attempt.
func runTwoFactor(ctx context.Context, a *app, code string, reader *bufio.Reader, w io.Writer, expiresIn int) int {
	expired := make(chan struct{})
	var once sync.Once
	unsubscribe := a.service.Subscribe(func(st auth.State) {
		if st.ErrorKind == apperrors.KindTempSessionExpired {
			once.Do(func() { close(expired) })
		}
	})
	defer unsubscribe()

	fmt.Fprintf(w, "Two-factor authentication required, the code expires in %d seconds.\n", expiresIn)
	for {
		codes := make(chan string, 1)
		if code != "" {
			codes <- code
		} else {
			go func() {
				codes <- prompt(reader, w, "Code: ")
			}()
		}

		select {
		case <-ctx.Done():
			a.service.CancelTwoFactor(context.WithoutCancel(ctx))
			fmt.Fprintln(w, "Cancelled.")
			return 1
		case <-expired:
			fmt.Fprintf(w, "Error: %s\n", apperrors.FallbackMessage(apperrors.KindTempSessionExpired))
			return 1
		case entered := <-codes:
			if entered == "" {
				a.service.CancelTwoFactor(ctx)
				fmt.Fprintln(w, "No code entered.")
				return 1
			}
			err := a.service.Verify2FA(ctx, entered)
			if err == nil {
				return 0
			}
			fmt.Fprintf(w, "Error: %s\n", apperrors.Message(err))
			if code != "" || apperrors.KindOf(err) != apperrors.KindInvalidTwoFactorCode {
				return 1
			}
		}
	}
}

func prompt(reader *bufio.Reader, w io.Writer, label string) string {
	fmt.Fprint(w, label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
