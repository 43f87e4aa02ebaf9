// Package server exposes the questionnaire workflow over HTTP for the
// browser front end.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auto-oracle/internal/model"
	"github.com/sells-group/auto-oracle/internal/pipeline"
)

// Service is the workflow the handlers drive. *pipeline.Pipeline satisfies it.
type Service interface {
	Parse(ctx context.Context, documentPath string) ([]model.Question, error)
	Answer(ctx context.Context, question, chatbotLink string) (string, error)
	AnswerAll(ctx context.Context, questions []string, chatbotLink string, concurrency int) ([]pipeline.BatchAnswer, error)
	Fill(ctx context.Context, docPath string, pairs []model.QAPair, outPath string) (string, error)
}

// Options configures the handlers.
type Options struct {
	UploadsDir       string
	OutputDir        string
	AllowedOrigins   []string
	BatchConcurrency int
	MaxUploadBytes   int64
}

const defaultMaxUpload = 32 << 20

// Server holds the handler dependencies.
type Server struct {
	svc  Service
	opts Options
}

// New returns a Server. Empty directories default to "uploads" and
// "output_docs".
func New(svc Service, opts Options) *Server {
	if opts.UploadsDir == "" {
		opts.UploadsDir = "uploads"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output_docs"
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.BatchConcurrency < 1 {
		opts.BatchConcurrency = 1
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	return &Server{svc: svc, opts: opts}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Post("/parse", s.handleParse)
	r.Post("/query", s.handleQuery)
	r.Post("/query/batch", s.handleQueryBatch)
	r.Post("/generate", s.handleGenerate)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps a workflow error to a response. Classified errors are
// the caller's problem and are returned as 400; anything else is a 500 with
// the detail kept in the log.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := model.KindOf(err); ok {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zap.L().Error("server: unexpected error",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "Unexpected error")
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.WrapError(err, model.KindValidation, "server: decode request body")
	}
	return nil
}

// resolveUpload maps a client supplied path onto a file inside the uploads
// directory. Both "uploads/x.docx" and "x.docx" are accepted.
func (s *Server) resolveUpload(ref string) (string, error) {
	const op = "server: resolve upload"
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", model.NewError(model.KindValidation, op, "empty path")
	}

	root, err := filepath.Abs(s.opts.UploadsDir)
	if err != nil {
		return "", eris.Wrap(err, op)
	}

	candidate := filepath.Clean(ref)
	if !filepath.IsAbs(candidate) {
		prefix := filepath.Clean(s.opts.UploadsDir) + string(filepath.Separator)
		candidate = filepath.Join(root, strings.TrimPrefix(candidate, prefix))
	}

	rel, err := filepath.Rel(root, candidate)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", model.Errorf(model.KindValidation, op, "%q is outside the uploads directory", ref)
	}
	if _, err := os.Stat(candidate); err != nil {
		return "", model.WrapError(err, model.KindIO, op)
	}
	return candidate, nil
}
