package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := withApp(ctx, func(a *app) int {
			return runLogout(ctx, a, os.Stdout)
		})
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(ctx context.Context, a *app, w io.Writer) int {
	a.service.Initialize(ctx)
	if a.service.State().Phase() != auth.PhaseAuthenticated {
		fmt.Fprintln(w, "Not logged in.")
		return 0
	}
	if err := a.service.Logout(ctx); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(w, "Logged out.")
	return 0
}
