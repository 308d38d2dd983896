package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vk/moleculego/internal/session"
)

// statusServer exposes the session's latest status over HTTP so an external
// system can probe a long-running watch session.
type statusServer struct {
	logger  *slog.Logger
	srv     *http.Server
	current atomic.Value // session.Status
}

// newStatusServer starts the status endpoint on the given port.
func newStatusServer(logger *slog.Logger, port int) *statusServer {
	s := &statusServer{logger: logger}
	s.current.Store(session.StatusExecuting)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/status", s.statusHandler)

	addr := fmt.Sprintf(":%d", port)
	s.srv = &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("🩺 Status server starting.", "address", fmt.Sprintf("http://localhost%s/status", addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return s
}

func (s *statusServer) setStatus(st session.Status) {
	s.current.Store(st)
}

func (s *statusServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Health endpoint hit.", "remote_addr", r.RemoteAddr)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *statusServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	st := s.current.Load().(session.Status)
	s.logger.Debug("Status endpoint hit.", "remote_addr", r.RemoteAddr, "status", st.String())
	if st == session.StatusError {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	fmt.Fprintln(w, st.String())
}

func (s *statusServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("Status server shutdown failed.", "error", err)
		return
	}
	s.logger.Debug("Status server shut down gracefully.")
}
