package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a stored session is still valid",
	Long:  `Restore the stored session, validate it with the Identity Service and show who is logged in.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := withApp(ctx, func(a *app) int {
			return runStatus(ctx, a, os.Stdout)
		})
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusOutput struct {
	Phase              string      `json:"phase"`
	User               *users.User `json:"user,omitempty"`
	CanAccessDashboard bool        `json:"can_access_dashboard"`
	Error              string      `json:"error,omitempty"`
}

// runStatus returns 0 when a session is active and 1 otherwise.
func runStatus(ctx context.Context, a *app, w io.Writer) int {
	a.service.Initialize(ctx)
	st := a.service.State()

	if jsonOutput {
		fmt.Fprintln(w, formatStatusJSON(st, a.service.CanAccessDashboard()))
	} else {
		fmt.Fprintln(w, formatStatusHuman(st, a.service.CanAccessDashboard()))
	}
	if st.Phase() != auth.PhaseAuthenticated {
		return 1
	}
	return 0
}

func formatStatusHuman(st auth.State, dashboard bool) string {
	if st.Phase() != auth.PhaseAuthenticated {
		msg := "Not logged in."
		if st.Error != "" {
			msg += "\n" + st.Error
		}
		return msg
	}
	access := "no"
	if dashboard {
		access = "yes"
	}
	return fmt.Sprintf(`Logged in as:  %s
User type:     %s
Dashboard:     %s`, st.User.DisplayName(), st.User.UserType, access)
}

func formatStatusJSON(st auth.State, dashboard bool) string {
	out := statusOutput{
		Phase:              st.Phase().String(),
		User:               st.User,
		CanAccessDashboard: dashboard,
		Error:              st.Error,
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return string(data)
}
