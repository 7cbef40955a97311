// Package server exposes the analysis runners over HTTP. Every request
// carries its dataset in the body; nothing is stored between requests.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/insight"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
	"github.com/KaramelBytes/tabsight/internal/report"
)

const (
	defaultDatasetID = "upload"
	xlsxMIME         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Config holds server limits and the base pipeline configuration.
type Config struct {
	Pipeline       pipeline.Config
	Timeout        time.Duration
	MaxUploadBytes int64
	MaxRows        int
}

// Server routes analysis requests to pipeline runners.
type Server struct {
	cfg    Config
	log    *zap.Logger
	router chi.Router
}

// New builds the router. A nil logger is replaced with a no-op logger.
func New(cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	s := &Server{cfg: cfg, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Post("/detect-types", s.handle(OpDetectTypes, s.detectTypes))
		r.Post("/profile", s.handle(OpProfile, s.profile))
		r.Post("/anomalies/{column}", s.handle(OpAnomalies, s.anomalies))
		r.Post("/trend/{column}", s.handle(OpTrend, s.trend))
		r.Post("/correlations", s.handle(OpCorrelations, s.correlations))
		r.Post("/insights", s.handle(OpInsights, s.insights))
		r.Post("/charts", s.handle(OpCharts, s.charts))
		r.Post("/analyze", s.handle(OpAnalyze, s.analyze))
	})
	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// request is the per-call context shared by every handler.
type request struct {
	*http.Request
	echo Echo
	cfg  pipeline.Config
}

type handlerFunc func(req *request, ds *dataset.Dataset) (any, error)

// rendered is a non-JSON response body.
type rendered struct {
	contentType string
	body        []byte
}

// badRequest marks invalid query parameters.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func (s *Server) handle(op string, fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := &request{
			Request: r,
			echo: Echo{
				DatasetID: q.Get("dataset_id"),
				Column:    chi.URLParam(r, "column"),
				UserID:    q.Get("user_id"),
			},
			cfg: s.cfg.Pipeline,
		}
		if req.echo.DatasetID == "" {
			req.echo.DatasetID = defaultDatasetID
		}
		out, err := s.serve(w, req, fn)
		if err != nil {
			s.log.Info("request failed",
				zap.String("op", op),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err))
			writeJSON(w, statusOf(err), ErrorDocument(op, req.echo, err))
			return
		}
		if raw, ok := out.(rendered); ok {
			w.Header().Set("Content-Type", raw.contentType)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(raw.body)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) serve(w http.ResponseWriter, req *request, fn handlerFunc) (any, error) {
	if err := applyQuery(&req.cfg, req.URL.Query()); err != nil {
		return nil, err
	}
	ds, err := s.readDataset(w, req)
	if err != nil {
		return nil, err
	}
	return fn(req, ds)
}

func (s *Server) readDataset(w http.ResponseWriter, req *request) (*dataset.Dataset, error) {
	body := http.MaxBytesReader(w, req.Body, s.cfg.MaxUploadBytes)
	defer body.Close()
	q := req.URL.Query()
	opt, err := dataset.ParseOptions(q.Get("delimiter"), q.Get("decimal"), q.Get("thousands"))
	if err != nil {
		return nil, &badRequest{err}
	}
	opt.MaxRows = s.cfg.MaxRows
	opt.SheetName = q.Get("sheet_name")

	ct, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	var ds *dataset.Dataset
	switch ct {
	case "application/json":
		ds, err = dataset.ReadJSON(body, req.echo.DatasetID, opt)
	case xlsxMIME:
		ds, err = dataset.ReadXLSX(body, req.echo.DatasetID, opt)
	default:
		ds, err = dataset.ReadCSV(body, req.echo.DatasetID, opt)
	}
	if err != nil {
		var le *dataset.LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &dataset.LoadError{Err: err}
	}
	return ds, nil
}

// applyQuery overrides run settings from query parameters.
func applyQuery(cfg *pipeline.Config, q map[string][]string) error {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	if v := get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return &badRequest{fmt.Errorf("invalid threshold: %s", v)}
		}
		cfg.CorrelationThreshold = f
	}
	if v := get("ranking"); v != "" {
		if v != insight.RankByConfidence && v != insight.RankByPriority {
			return &badRequest{fmt.Errorf("invalid ranking: %s (use confidence or priority)", v)}
		}
		cfg.Insight.Ranking = v
	}
	if v := get("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 0 {
			return &badRequest{fmt.Errorf("invalid top_k: %s", v)}
		}
		cfg.Insight.TopK = k
	}
	if v := get("summary"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &badRequest{fmt.Errorf("invalid summary: %s", v)}
		}
		cfg.Insight.Summary = b
	}
	return nil
}

func statusOf(err error) int {
	var (
		mbe *http.MaxBytesError
		br  *badRequest
		le  *dataset.LoadError
		nf  *dataset.ColumnNotFoundError
	)
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &br), errors.As(err, &le), errors.As(err, &nf):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (s *Server) runner(req *request) *pipeline.Runner {
	return pipeline.New(req.cfg, s.log.With(zap.String("request_id", middleware.GetReqID(req.Context()))))
}

func (s *Server) detectTypes(req *request, ds *dataset.Dataset) (any, error) {
	return s.runner(req).DetectTypes(req.Context(), req.echo.DatasetID, ds)
}

func (s *Server) profile(req *request, ds *dataset.Dataset) (any, error) {
	return s.runner(req).ProfileDataset(req.Context(), req.echo.DatasetID, ds)
}

func (s *Server) anomalies(req *request, ds *dataset.Dataset) (any, error) {
	return s.runner(req).AnomalyColumn(ds, req.echo.Column)
}

func (s *Server) trend(req *request, ds *dataset.Dataset) (any, error) {
	return s.runner(req).TrendColumn(ds, req.echo.Column)
}

func (s *Server) correlations(req *request, ds *dataset.Dataset) (any, error) {
	return s.runner(req).CorrelateDataset(req.Context(), ds)
}

func (s *Server) charts(req *request, ds *dataset.Dataset) (any, error) {
	return s.runner(req).ChartDataset(req.Context(), req.echo.DatasetID, ds)
}

func (s *Server) insights(req *request, ds *dataset.Dataset) (any, error) {
	res, err := s.runner(req).Run(req.Context(), req.echo.DatasetID, ds)
	if err != nil {
		return nil, err
	}
	res.Insights.UserID = req.echo.UserID
	return res.Insights, nil
}

func (s *Server) analyze(req *request, ds *dataset.Dataset) (any, error) {
	format := req.URL.Query().Get("format")
	switch format {
	case "", "json", "markdown", "html":
	default:
		return nil, &badRequest{fmt.Errorf("unsupported format: %s (use json|markdown|html)", format)}
	}
	res, err := s.runner(req).Run(req.Context(), req.echo.DatasetID, ds)
	if err != nil {
		return nil, err
	}
	switch format {
	case "markdown":
		return rendered{"text/markdown; charset=utf-8", []byte(report.Markdown(res, ds, report.DefaultOptions()))}, nil
	case "html":
		return rendered{"text/html; charset=utf-8", report.HTML(res, ds, report.DefaultOptions())}, nil
	}
	return res, nil
}
