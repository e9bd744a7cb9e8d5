package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/latticeiam/aclnet/internal/authconfig"
)

var errNotLoopback = errors.New("serve: --addr must be a loopback address")

func newServeDiagCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a loopback-only diagnostic status page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return err
			}

			ip := net.ParseIP(host)
			if host != "localhost" && (ip == nil || !ip.IsLoopback()) {
				return errNotLoopback
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			defer ln.Close()

			zl := zerolog.New(os.Stderr).With().Timestamp().Logger()

			mux := http.NewServeMux()
			mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(cc.Net.Snapshot())
			})

			cmd.OutOrStdout().Write([]byte("diagnostic server listening on " + ln.Addr().String() + "\n"))

			stop := make(chan struct{})
			defer close(stop)

			go func() {
				err := authconfig.Watch(flagConfigPath, cc.Logger, cc.Net.ApplyConfig, stop)
				if err != nil {
					cc.Logger.Warn("auth config watch stopped", "error", err)
				}
			}()

			return http.Serve(ln, accessLog(zl, mux))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:0", "loopback address to bind (a loopback IP or localhost)")

	return cmd
}

// accessLog wraps h with zerolog-based HTTP access logging, kept deliberately
// separate from the core's slog usage (spec's retry/auth loop logs through
// slog; this is a CLI-only convenience surface).
func accessLog(logger zerolog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		h.ServeHTTP(rec, r)

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("diag request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
