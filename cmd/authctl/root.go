package main

import (
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/spf13/cobra"
)

var (
	identityURL string
	envFile     string
	jsonOutput  bool
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "authctl",
	Short: "Log in to the Identity Service and call it with the stored session",
	Long: `authctl keeps a session with the Identity Service in the client store and
uses it for authenticated requests.

Environment Variables:
  IDENTITY_BASE_URL  Identity Service URL (default: http://localhost:8090)
  STORE_BACKEND      file, redis or memory (default: file)
  STORE_PATH         File store location
  REDIS_URL          Redis store location
  STORE_NAMESPACE    Key prefix inside the store (default: default)
  LOG_LEVEL          debug, info, warn or error (default: info)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&identityURL, "identity-url", "", "Identity Service URL (overrides IDENTITY_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// loadConfig reads the env file and configures logging.
func loadConfig() (config.Config, error) {
	c, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(c, nil)
	return c, nil
}

// baseURL returns the Identity Service URL from flag or config, in that order.
func baseURL(c config.TransportConfig) string {
	if identityURL != "" {
		return identityURL
	}
	return c.GetIdentityBaseURL()
}
