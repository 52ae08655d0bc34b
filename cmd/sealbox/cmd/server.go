package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/sealbox/api"
)

const sweepInterval = 5 * time.Minute

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the management API on a local address",
	Long: `Server exposes the profile over a JSON HTTP API. It listens on the
loopback interface by default. Clients register or log in to obtain a
bearer token.`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	f := serverCmd.Flags()
	f.String(keyListen, "127.0.0.1:8420", "Address to listen on")
	f.String(keyTLSCert, "", "Path to TLS certificate file")
	f.String(keyTLSKey, "", "Path to TLS key file")
	f.StringSlice(keyTrustedProxies, nil, "CIDR ranges whose forwarding headers are trusted")
	f.Duration(keySessionTTL, 12*time.Hour, "Absolute lifetime of a bearer token")
	f.Duration(keyIdleTimeout, 30*time.Minute, "Idle timeout of a bearer token (0 disables)")
	f.String(keyKDFProfile, "", "Argon2id profile for registrations through the API")
}

func runServer(cmd *cobra.Command, _ []string) error {
	proxies, err := parseTrustedProxies(settings.GetStringSlice(keyTrustedProxies))
	if err != nil {
		return err
	}

	c, err := openCore()
	if err != nil {
		return err
	}
	defer c.Close()

	a := api.New(c,
		api.WithLogger(logger.With("component", "api")),
		api.WithTrustedProxies(proxies),
		api.WithSessionTTL(settings.GetDuration(keySessionTTL)),
		api.WithIdleTimeout(settings.GetDuration(keyIdleTimeout)),
		api.WithAlertFunc(func(e api.AlertEvent) {
			logger.Warn("security alert", "type", e.Type, "count", e.Count, "threshold", e.Threshold)
		}),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Mount("/api/v1", a.Router())

	addr := settings.GetString(keyListen)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		if ip, err := netip.ParseAddr(host); err != nil || !ip.IsLoopback() {
			printWarning("listening on non-loopback address %s", addr)
		}
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	certFile, keyFile := settings.GetString(keyTLSCert), settings.GetString(keyTLSKey)
	useTLS := certFile != "" && keyFile != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Sweep()
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	printBanner()
	logger.Info("server started", "addr", addr, "tls", useTLS, "data_dir", settings.GetString(keyDataDir))

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}

func parseTrustedProxies(raw []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			addr, addrErr := netip.ParseAddr(s)
			if addrErr != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", s, err)
			}
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
		prefixes = append(prefixes, p)
	}
	return prefixes, nil
}
