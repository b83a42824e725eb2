// Package keepalive serves the small HTTP endpoint hosting platforms ping
// to keep the bot process awake.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const (
	// ReadHeader limits how long the server waits for request headers.
	ReadHeader = 5 * time.Second
	// Shutdown limits how long in-flight requests may take on shutdown.
	Shutdown = 5 * time.Second
)

// NewRouter returns the ping routes.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Bot is running!")
	}).Methods("GET", "HEAD")
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET", "HEAD")
	return r
}

// Serve listens on addr until ctx is done, then shuts the server down.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(),
		ReadHeaderTimeout: ReadHeader,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Keep-alive server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("keep-alive server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), Shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown keep-alive server: %w", err)
	}
	return nil
}
