package api

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	models "IndiPull/internal/domain/models"
	"IndiPull/internal/registry"
	"IndiPull/internal/series"
	svcmetrics "IndiPull/internal/service/metrics"
	"IndiPull/internal/service/ratelimit"
	"IndiPull/internal/services/analytics"
	"IndiPull/internal/usecase"
	"IndiPull/pkg/date"
	xhttp "IndiPull/pkg/http"
	xlogger "IndiPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Options tune the handler. RefreshBurst and RefreshPerMinute size the
// per-client token bucket for POST /api/refresh; WindowDays and MaxLag apply
// when a query leaves them out.
type Options struct {
	RefreshBurst     float64
	RefreshPerMinute float64
	WindowDays       int
	MaxLag           int
}

// DashboardHandler serves the dashboard, its series and the on-demand
// analytics over HTTP.
type DashboardHandler struct {
	logger  *xlogger.Logger
	dash    *usecase.Dashboard
	limiter *ratelimit.Limiter
	opts    Options
}

func NewDashboardHandler(logger *xlogger.Logger, dash *usecase.Dashboard, limiter *ratelimit.Limiter, opts Options) *DashboardHandler {
	svcmetrics.Register()
	return &DashboardHandler{logger: logger, dash: dash, limiter: limiter, opts: opts}
}

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/dashboard", h.Dashboard)
	g.GET("/series", h.Series)
	g.GET("/alerts", h.Alerts)
	g.GET("/indicators", h.Indicators)
	g.GET("/correlation", h.Correlation)
	g.GET("/lag", h.Lag)
	g.GET("/forecast", h.Forecast)
	g.POST("/refresh", h.Refresh)
}

func (h *DashboardHandler) Dashboard(c echo.Context) error {
	v, err := h.dash.Current(c.Request().Context())
	if err != nil {
		return h.fail(c, "dashboard", err)
	}
	return xhttp.SuccessResponse(c, v)
}

func (h *DashboardHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ts, err := h.dash.Series(c.Request().Context(), xhttp.CodeList(req.Codes), req.Days)
	if err != nil {
		return h.fail(c, "series", err)
	}
	return xhttp.SuccessResponse(c, ts)
}

type alertsResponse struct {
	CycleID string         `json:"cycle_id"`
	BuiltAt time.Time      `json:"built_at"`
	Alerts  []models.Alert `json:"alerts"`
}

func (h *DashboardHandler) Alerts(c echo.Context) error {
	v, err := h.dash.Current(c.Request().Context())
	if err != nil {
		return h.fail(c, "alerts", err)
	}
	return xhttp.SuccessResponse(c, alertsResponse{CycleID: v.CycleID, BuiltAt: v.BuiltAt, Alerts: v.Alerts})
}

type categoryView struct {
	registry.Category
	Indicators []registry.Indicator `json:"indicators"`
}

func (h *DashboardHandler) Indicators(c echo.Context) error {
	reg := h.dash.Registry()
	cats := reg.Categories()
	out := make([]categoryView, 0, len(cats))
	for _, cat := range cats {
		cv := categoryView{Category: cat}
		for _, ind := range reg.Indicators() {
			if ind.Category == cat.ID {
				cv.Indicators = append(cv.Indicators, ind)
			}
		}
		out = append(out, cv)
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// matrixResponse carries NaN cells as null.
type matrixResponse struct {
	Codes        []string     `json:"codes"`
	WindowDays   int          `json:"window_days"`
	Observations int          `json:"observations"`
	From         date.Date    `json:"from"`
	To           date.Date    `json:"to"`
	Coefficients [][]*float64 `json:"coefficients"`
}

func toMatrixResponse(m models.CorrelationMatrix) matrixResponse {
	out := matrixResponse{
		Codes:        m.Codes,
		WindowDays:   m.WindowDays,
		Observations: m.Observations,
		From:         m.From,
		To:           m.To,
		Coefficients: make([][]*float64, len(m.Coefficients)),
	}
	for i, row := range m.Coefficients {
		out.Coefficients[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				v := v
				out.Coefficients[i][j] = &v
			}
		}
	}
	return out
}

func (h *DashboardHandler) Correlation(c echo.Context) error {
	defer observe("correlation", time.Now())
	req := &models.CorrelationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	window := orDefault(c, "window", req.Window, h.opts.WindowDays)
	m, err := h.dash.Correlation(c.Request().Context(), xhttp.CodeList(req.Codes), window)
	if err != nil {
		return h.fail(c, "correlation", err)
	}
	return xhttp.SuccessResponse(c, toMatrixResponse(m))
}

// orDefault returns def when the query parameter is absent, so an explicit 0
// stays reachable.
func orDefault(c echo.Context, param string, v, def int) int {
	if c.QueryParam(param) == "" {
		return def
	}
	return v
}

func (h *DashboardHandler) Lag(c echo.Context) error {
	defer observe("lag", time.Now())
	req := &models.LagRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	maxLag := orDefault(c, "max_lag", req.MaxLag, h.opts.MaxLag)
	res, err := h.dash.Lag(c.Request().Context(), code(req.Leading), code(req.Lagging), maxLag)
	if err != nil {
		return h.fail(c, "lag", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardHandler) Forecast(c echo.Context) error {
	defer observe("forecast", time.Now())
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.dash.Forecast(c.Request().Context(), code(req.Target), xhttp.CodeList(req.Features), req.Window)
	if err != nil {
		return h.fail(c, "forecast", err)
	}
	return xhttp.SuccessResponse(c, res)
}

type refreshResponse struct {
	CycleID string                 `json:"cycle_id"`
	BuiltAt time.Time              `json:"built_at"`
	Rows    int                    `json:"rows"`
	Alerts  int                    `json:"alerts"`
	Sources []usecase.SourceStatus `json:"sources"`
}

func (h *DashboardHandler) Refresh(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), h.opts.RefreshBurst, h.opts.RefreshPerMinute/60) {
		svcmetrics.RefreshRejected.Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("refresh rate limit exceeded"))
	}
	v, err := h.dash.Refresh(c.Request().Context())
	if err != nil {
		return h.fail(c, "refresh", err)
	}
	return xhttp.SuccessResponse(c, refreshResponse{
		CycleID: v.CycleID,
		BuiltAt: v.BuiltAt,
		Rows:    v.Series.Len(),
		Alerts:  len(v.Alerts),
		Sources: v.Sources,
	})
}

type healthResponse struct {
	Status  string    `json:"status"`
	CycleID string    `json:"cycle_id,omitempty"`
	BuiltAt time.Time `json:"built_at,omitempty"`
	NoData  bool      `json:"no_data,omitempty"`
}

func (h *DashboardHandler) Health(c echo.Context) error {
	v := h.dash.Latest()
	if v == nil {
		return xhttp.SuccessResponse(c, healthResponse{Status: "starting"})
	}
	return xhttp.SuccessResponse(c, healthResponse{Status: "ok", CycleID: v.CycleID, BuiltAt: v.BuiltAt, NoData: v.NoData})
}

func (h *DashboardHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	}
	svcmetrics.AnalyticsErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var insufficient *analytics.InsufficientDataError
	switch {
	case errors.As(err, &insufficient):
		return xhttp.UnprocessableError("insufficient data").
			WithParam("required", insufficient.Required).
			WithParam("got", insufficient.Got).
			WithError(err)
	case errors.Is(err, series.ErrNoData):
		return xhttp.NotFoundError("no indicator data available").WithError(err)
	case errors.Is(err, analytics.ErrDegenerateFeature):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, registry.ErrUnknownIndicator), errors.Is(err, analytics.ErrInvalidArgument):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("request cancelled").WithError(err)
	default:
		return xhttp.InternalError("something went wrong").WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	svcmetrics.AnalyticsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func code(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
