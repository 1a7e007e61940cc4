// Package httpapi exposes the analyzer over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"orderstats/internal/logging"
	"orderstats/internal/metrics"
	"orderstats/internal/model"
	"orderstats/internal/report"
	"orderstats/internal/service"
	"orderstats/internal/source"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Analyzer is the part of service.Analyzer the handlers use.
type Analyzer interface {
	AnalyzeReader(ctx context.Context, name string, r io.Reader, req service.Request) (service.Result, error)
	Analyze(ctx context.Context, t *source.Table, content []byte, req service.Request) (service.Result, error)
}

type Handler struct {
	analyzer  Analyzer
	metrics   *metrics.Registry
	logger    *slog.Logger
	maxUpload int64
	validate  *validator.Validate
}

func NewHandler(a Analyzer, m *metrics.Registry, logger *slog.Logger, maxUpload int64) *Handler {
	return &Handler{
		analyzer:  a,
		metrics:   m,
		logger:    logger.With(slog.String("handler", "reports")),
		maxUpload: maxUpload,
		validate:  validator.New(),
	}
}

// Routes mounts every endpoint.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	r.Route("/v1/reports", func(r chi.Router) {
		r.Post("/", h.upload)
		r.Post("/rows", h.rows)
	})
	return r
}

// requestContext carries the request id into log records and observes
// latency per route.
func (h *Handler) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RequestLatency.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// upload handles POST /v1/reports. The body is the export file itself or a
// multipart form with a "file" part; options come from the query string.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	req, err := requestFromQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	body := io.Reader(r.Body)
	name := r.URL.Query().Get("filename")
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		f, fh, err := r.FormFile("file")
		if err != nil {
			h.fail(w, r, fmt.Errorf("multipart: %w", unwrapUpload(err)))
			return
		}
		defer f.Close()
		body, name = f, fh.Filename
	}

	res, err := h.analyzer.AnalyzeReader(r.Context(), name, body, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, res)
}

// RowsRequest is the JSON body of POST /v1/reports/rows.
type RowsRequest struct {
	Dialect  string         `json:"dialect" validate:"omitempty,oneof=fbo fbs FBO FBS"`
	Strategy string         `json:"strategy" validate:"omitempty,oneof=all pair triple busiest custom"`
	Days     []string       `json:"days" validate:"required_if=Strategy custom,dive,datetime=2006-01-02"`
	From     string         `json:"from" validate:"required_with=To"`
	To       string         `json:"to" validate:"required_with=From"`
	Compare  bool           `json:"compare"`
	Rows     []model.RawRow `json:"rows" validate:"required,min=1"`
}

func (h *Handler) rows(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	var body RowsRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.fail(w, r, err)
			return
		}
		h.fail(w, r, badRequest("decode body: %v", err))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		h.fail(w, r, err)
		return
	}
	req, err := service.ParseRequest(body.Dialect, body.Strategy, body.Days, body.From, body.To, body.Compare)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.analyzer.Analyze(r.Context(), source.FromRows(body.Rows), nil, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, r, res)
}

func requestFromQuery(r *http.Request) (service.Request, error) {
	q := r.URL.Query()
	var days []string
	if v := q.Get("days"); v != "" {
		days = strings.Split(v, ",")
	}
	strategy := q.Get("strategy")
	if strategy == "" {
		strategy = q.Get("select")
	}
	compare, _ := strconv.ParseBool(q.Get("compare"))
	return service.ParseRequest(q.Get("dialect"), strategy, days, q.Get("from"), q.Get("to"), compare)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res service.Result) {
	if res.Cached {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.Header().Set("X-Report-Id", res.Payload.ID)
	if res.PublishErr != nil {
		w.Header().Set("X-Publish-Error", "1")
	}

	if wantsXLSX(r) {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=report-%s.xlsx", res.Payload.ID))
		if err := report.WriteXLSX(w, res.Payload); err != nil {
			h.logger.ErrorContext(r.Context(), "write xlsx", slog.String("error", err.Error()))
		}
		return
	}
	render.JSON(w, r, res.Payload)
}

func wantsXLSX(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), xlsxContentType)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errorFor(err)
	level := slog.LevelInfo
	if apiErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", apiErr.StatusCode),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	_ = render.Render(w, r, apiErr)
}

// unwrapUpload surfaces the size limit hidden behind multipart errors.
func unwrapUpload(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return tooBig
	}
	return badRequest("%v", err)
}
