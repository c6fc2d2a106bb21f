// Package server exposes the persona pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/KaramelBytes/personaloom/internal/pipeline"
)

// AnalyzePath is the single upload endpoint.
const AnalyzePath = "/analyze-segments"

// Options configures a Server.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
	Pipeline        pipeline.Options
}

// Server serves POST /analyze-segments.
type Server struct {
	opt     Options
	log     *slog.Logger
	handler http.Handler
}

// New builds a Server. A nil logger discards output.
func New(opt Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opt.ShutdownTimeout <= 0 {
		opt.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{opt: opt, log: log.With(slog.String("component", "server"))}
	mux := http.NewServeMux()
	mux.HandleFunc(AnalyzePath, s.handleAnalyze)
	s.handler = requestID(s.logRequests(cors(opt.AllowedOrigins, mux)))
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe listens on Options.Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opt.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opt.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down", slog.Duration("timeout", s.opt.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opt.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type errorResponse struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	log := loggerFrom(r.Context(), s.log)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	body := r.Body
	if s.opt.MaxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	}
	upload, name, err := openUpload(r, body)
	if err != nil {
		status := http.StatusBadRequest
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			status = http.StatusRequestEntityTooLarge
		}
		log.Warn("bad upload", slog.String("error", err.Error()))
		writeError(w, status, err.Error())
		return
	}

	opt := s.opt.Pipeline
	opt.Logger = log
	res, err := pipeline.RunReader(r.Context(), upload, name, opt)
	if err != nil {
		status := pipeline.StatusOf(err)
		if status >= http.StatusInternalServerError {
			log.Error("analyze failed", slog.String("file", name), slog.String("error", err.Error()))
		} else {
			log.Warn("analyze rejected", slog.String("file", name), slog.Int("status", status), slog.String("error", err.Error()))
		}
		writeError(w, status, err.Error())
		return
	}
	log.Info("analyze ok",
		slog.String("file", res.Table.Name),
		slog.Int("rows", res.Table.Rows),
		slog.Int("personas", len(res.Personas)),
	)
	writeJSON(w, http.StatusOK, res.Response())
}

// openUpload returns the uploaded file stream: the multipart "file" field, or the raw body.
func openUpload(r *http.Request, body io.Reader) (io.Reader, string, error) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.xlsx"
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "multipart/form-data" {
		return body, name, nil
	}
	r.Body = io.NopCloser(body)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", fmt.Errorf("read multipart form: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", errors.New(`missing form field "file"`)
		}
		if err != nil {
			return nil, "", fmt.Errorf("read multipart form: %w", err)
		}
		if part.FormName() != "file" {
			continue
		}
		if fn := part.FileName(); fn != "" {
			name = fn
		}
		return part, name, nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Success: false, Detail: detail})
}
