package smartedit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const (
	maxBodyBytes         = 50 << 20
	IdempotencyKeyHeader = "Idempotency-Key"
)

type Server struct {
	proc     *Processor
	provider string
	metrics  *Metrics
	started  time.Time
	logger   *zap.Logger
}

func NewServer(proc *Processor, provider string, metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{proc: proc, provider: provider, metrics: metrics, started: time.Now(), logger: logger}
}

// Handler serves every route both at the root and under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.errorLogger)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", IdempotencyKeyHeader},
		MaxAge:         300,
	}))

	r.Group(s.routes)
	r.Route("/api", s.routes)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Post("/set-folder", s.handleSetFolder)
	r.Post("/smart-execute", s.handleSmartExecute)
	r.Get("/read-file", s.handleReadFile)
	r.Post("/read-file", s.handleReadFile)
	r.Post("/write-file", s.handleWriteFile)
	r.Post("/ai-task", s.handleAITask)
	r.Get("/history", s.handleHistory)
	r.Get("/backups", s.handleBackups)
	r.Post("/restore", s.handleRestore)
	r.Get("/health", s.handleHealth)
}

// Serve listens on addr until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", zap.String("addr", addr), zap.String("provider", s.provider))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// errorLogger logs only failed requests.
func (s *Server) errorLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t1 := time.Now()
		defer func() {
			if ww.Status() >= 400 && ww.Status() != http.StatusNotFound {
				s.logger.Warn("Request failed",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("elapsed", time.Since(t1)))
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("Recovered from panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"))
				writeErr(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]interface{}{
		"success":   false,
		"error":     message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		var detailed *DetailedError
		if errors.As(err, &detailed) {
			s.logger.Error("Request panicked", zap.Error(err), zap.ByteString("stack", detailed.Stack))
		} else {
			s.logger.Error("Request error", zap.String("path", r.URL.Path), zap.Error(err))
		}
	}
	writeErr(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrPathEscape),
		errors.Is(err, ErrAbsolutePath),
		errors.Is(err, ErrInvalidPath),
		errors.Is(err, ErrNoTargetFolder):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist), errors.Is(err, ErrNoBackup):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, w http.ResponseWriter, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Field: "body", Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

func (s *Server) handleSetFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FolderPath string `json:"folderPath"`
	}
	if err := decode(r, w, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	path, err := s.proc.SetFolder(req.FolderPath)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "path": path})
}

type smartExecuteResponse struct {
	Success bool `json:"success"`
	Result
}

func (s *Server) handleSmartExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command    string `json:"command"`
		FolderPath string `json:"folderPath"`
		DryRun     bool   `json:"dryRun"`
	}
	if err := decode(r, w, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.proc.Execute(r.Context(), Command{
		Text:           req.Command,
		TargetFolder:   req.FolderPath,
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
		DryRun:         req.DryRun,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, smartExecuteResponse{Success: true, Result: res})
}

func (s *Server) handleReadFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if r.Method == http.MethodGet {
		req.Filename = r.URL.Query().Get("filename")
	} else if err := decode(r, w, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	content, err := s.proc.ReadFile(req.Filename)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "content": content})
}

func (s *Server) handleWriteFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string  `json:"filename"`
		Content  *string `json:"content"`
	}
	if err := decode(r, w, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Content == nil {
		s.fail(w, r, requiredField("content"))
		return
	}
	if err := s.proc.WriteFile(r.Context(), req.Filename, *req.Content); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleAITask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt   string `json:"prompt"`
		Code     string `json:"code"`
		Filename string `json:"filename"`
	}
	if err := decode(r, w, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	code, err := s.proc.Edit(r.Context(), EditContext{Filename: req.Filename, Code: req.Code, Instruction: req.Prompt})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "code": code})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "history": s.proc.History()})
}

func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	list, err := s.proc.Backups(r.URL.Query().Get("filename"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []BackupInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "backups": list})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
		Backup   string `json:"backup"`
	}
	if err := decode(r, w, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	restored, err := s.proc.Restore(r.Context(), req.Filename, req.Backup)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "restored": restored})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"aiProvider": s.provider,
		"uptime":     time.Since(s.started).Seconds(),
	})
}
