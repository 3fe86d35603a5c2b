package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Send an authenticated GET request",
	Long: `Send a GET request for path with the stored session. A rejected session is
validated once with the Identity Service; if it is no longer valid it is
removed from the store.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := withApp(ctx, func(a *app) int {
			return runGet(ctx, a, args[0], os.Stdout)
		})
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(ctx context.Context, a *app, path string, w io.Writer) int {
	a.service.Initialize(ctx)

	body, err := a.coord.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %s\n", apperrors.Message(err))
		if apperrors.KindOf(err) == apperrors.KindUnauthenticated {
			fmt.Fprintln(w, "Run `authctl login` to start a new session.")
		}
		return 1
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	fmt.Fprintln(w, string(bytes.TrimSpace(body)))
	return 0
}
