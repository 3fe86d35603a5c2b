package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/server/loginsession"
	"github.com/jrsteele09/go-auth-session/token"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cleanupInterval = time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	logging.Setup(c, nil)
	displayAppname(c.GetAppName())

	accounts := fakeuserrepo.NewFakeUserRepo()
	demo, err := server.SeedDemoAccounts(accounts, c.GetDemoPassword())
	if err != nil {
		return fmt.Errorf("server.SeedDemoAccounts: %w", err)
	}
	options, closeRevocations, err := revocationOptions(c)
	if err != nil {
		return err
	}
	defer closeRevocations()

	s, err := server.New(c, accounts, loginsession.NewInMemoryLoginSessionRepo(), options...)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	s.LogDemoAccounts(demo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanup(ctx, s)

	httpServer := &http.Server{Addr: c.GetPort(), Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errs := make(chan error, 1)
	go func() {
		errs <- listenAndServe(httpServer)
	}()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// revocationOptions keeps logged out sessions in Redis when
// STUB_REVOCATION_REDIS_URL is set.
func revocationOptions(c config.StubConfig) ([]server.Option, func(), error) {
	url := c.GetRevocationRedisURL()
	if url == "" {
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("pinging redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Revoked sessions kept in redis")

	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Err(err).Msg("closing redis client")
		}
	}
	return []server.Option{server.WithRevokedSessionCache(token.NewRedisRevokedSessionCache(client, "identity-stub:"))}, closeClient, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func cleanup(ctx context.Context, s *server.Server) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			challenges, revocations := s.Cleanup()
			if challenges+revocations > 0 {
				log.Debug().Int("challenges", challenges).Int("revocations", revocations).Msg("expired entries removed")
			}
		}
	}
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
