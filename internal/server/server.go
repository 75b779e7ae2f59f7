package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"
)

func Handler(hub *Hub, store InterviewStore, controls CallControls) http.Handler {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, controls)
	registerAPIRoutes(mux, store, controls)

	return mux
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("api listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
