package webapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/talkincode/dishwatch/internal/analytics"
	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/speedtest"
)

// intParam reads an integer query parameter with a default.
func intParam(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		return cast.ToInt(v)
	}
	return def
}

// dateParam reads a date-ish query parameter, defaulting to now. Accepts
// any layout dateparse recognizes.
func dateParam(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Now(), nil
	}
	t, err := dateparse.ParseLocal(v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid %s parameter", name)
	}
	return t, nil
}

func (s *Server) health(c echo.Context) error {
	status := s.collector.Status()
	db, err := s.store.DB().DB()
	dbOK := err == nil && db.Ping() == nil
	samples, _ := s.store.CountMetricsSince(time.Now().Add(-24 * time.Hour))

	healthy := dbOK
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]interface{}{
		"healthy":     healthy,
		"database":    dbOK,
		"collector":   status,
		"samples_24h": samples,
	})
}

func (s *Server) status(c echo.Context) error {
	latest, err := s.store.LatestMetric()
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	open, err := s.store.OpenedOutage()
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return ok(c, map[string]interface{}{
		"collector":   s.collector.Status(),
		"latest":      latest,
		"open_outage": open,
	})
}

func (s *Server) summary(c echo.Context) error {
	sum, err := s.engine.Summary(intParam(c, "days", 1))
	if err != nil {
		return analyticsError(c, err)
	}
	return ok(c, sum)
}

func (s *Server) trend(c echo.Context) error {
	metric := c.QueryParam("metric")
	period := c.QueryParam("period")
	if period == "" {
		period = "hour"
	}
	points, err := s.engine.Trend(metric, period, intParam(c, "days", 1))
	if err != nil {
		return analyticsError(c, err)
	}
	return ok(c, points)
}

func (s *Server) comparison(c echo.Context) error {
	metric := c.QueryParam("metric")
	if metric == "" {
		metric = "quality"
	}
	cmp, err := s.engine.Comparison(metric)
	if err != nil {
		return analyticsError(c, err)
	}
	return ok(c, cmp)
}

func (s *Server) advanced(c echo.Context) error {
	adv, err := s.engine.Advanced(intParam(c, "days", 7))
	if err != nil {
		return analyticsError(c, err)
	}
	return ok(c, adv)
}

func (s *Server) insights(c echo.Context) error {
	ins, err := s.engine.Insights(intParam(c, "days", 7))
	if err != nil {
		return analyticsError(c, err)
	}
	return ok(c, ins)
}

func (s *Server) metrics(c echo.Context) error {
	var start, end time.Time
	var err error
	if v := c.QueryParam("start"); v != "" {
		if start, err = dateparse.ParseLocal(v); err != nil {
			return fail(c, http.StatusBadRequest, errors.Wrap(err, "invalid start parameter"))
		}
	}
	if v := c.QueryParam("end"); v != "" {
		if end, err = dateparse.ParseLocal(v); err != nil {
			return fail(c, http.StatusBadRequest, errors.Wrap(err, "invalid end parameter"))
		}
	}
	rows, err := s.store.MetricsRange(start, end, intParam(c, "limit", 1000))
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return ok(c, rows)
}

func (s *Server) events(c echo.Context) error {
	since := time.Now().Add(-time.Duration(intParam(c, "hours", 24)) * time.Hour)
	rows, err := s.store.EventsSince(since, intParam(c, "limit", 200))
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return ok(c, rows)
}

func (s *Server) outages(c echo.Context) error {
	since := time.Now().AddDate(0, 0, -intParam(c, "days", 7))
	rows, err := s.store.OutagesSince(since)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	count, totalSeconds, err := s.store.OutageStats(since)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return ok(c, map[string]interface{}{
		"outages":       rows,
		"count":         count,
		"total_minutes": float64(totalSeconds) / 60,
	})
}

func (s *Server) weatherNow(c echo.Context) error {
	stored, err := s.store.LatestWeather()
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	resp := map[string]interface{}{
		"configured": s.weather != nil && s.weather.Configured(),
		"latest":     stored,
	}
	if s.weather != nil && s.weather.Configured() {
		if current, cerr := s.weather.Current(); cerr == nil {
			resp["current"] = current
			resp["impact"] = s.weather.ForecastImpact()
		}
	}
	return ok(c, resp)
}

// ---- reports ----

func (s *Server) reportDaily(c echo.Context) error {
	return s.report(c, s.engine.DailyReport)
}

func (s *Server) reportWeekly(c echo.Context) error {
	return s.report(c, s.engine.WeeklyReport)
}

func (s *Server) reportMonthly(c echo.Context) error {
	return s.report(c, s.engine.MonthlyReport)
}

func (s *Server) report(c echo.Context, build func(time.Time) (*analytics.Report, error)) error {
	date, err := dateParam(c, "date")
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}
	rep, err := build(date)
	if err != nil {
		return analyticsError(c, err)
	}

	if c.QueryParam("format") == "csv" {
		body, cerr := gocsv.MarshalString([]analytics.ReportRow{rep.Row()})
		if cerr != nil {
			return fail(c, http.StatusInternalServerError, cerr)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="report_%s_%s.csv"`, rep.Period, rep.Label))
		return c.Blob(http.StatusOK, "text/csv", []byte(body))
	}
	return ok(c, rep)
}

// ---- speed tests ----

func (s *Server) speedtestRun(c echo.Context) error {
	testType := c.QueryParam("type")
	if testType == "" {
		testType = domain.SpeedTestManual
	}
	result, err := s.sptEngine.Run(testType)
	if err != nil {
		if errors.Is(err, speedtest.ErrTestRunning) {
			return fail(c, http.StatusConflict, err)
		}
		return fail(c, http.StatusInternalServerError, err)
	}
	return ok(c, result)
}

func (s *Server) speedtestCancel(c echo.Context) error {
	if !s.sptEngine.Cancel() {
		return fail(c, http.StatusNotFound, errors.New("no speed test is running"))
	}
	return ack(c, "speed test cancelled")
}

func (s *Server) speedtestResults(c echo.Context) error {
	since := time.Now().AddDate(0, 0, -intParam(c, "days", 7))
	rows, err := s.store.SpeedTestsSince(since, c.QueryParam("type"), intParam(c, "limit", 100))
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return ok(c, rows)
}

func (s *Server) speedtestSummary(c echo.Context) error {
	sum, err := s.sptEngine.Summary(intParam(c, "days", 7))
	if err != nil {
		return speedtestError(c, err)
	}
	return ok(c, sum)
}

func (s *Server) speedtestTrend(c echo.Context) error {
	points, err := s.sptEngine.Trends(intParam(c, "days", 7))
	if err != nil {
		return speedtestError(c, err)
	}
	return ok(c, points)
}

func speedtestError(c echo.Context, err error) error {
	if errors.Is(err, speedtest.ErrNoResults) {
		return fail(c, http.StatusNotFound, err)
	}
	return fail(c, http.StatusInternalServerError, err)
}

type scheduleForm struct {
	Name     string `json:"name" form:"name"`
	CronExpr string `json:"cron_expr" form:"cron_expr"`
	Enabled  *bool  `json:"enabled" form:"enabled"`
}

func (s *Server) schedulesList(c echo.Context) error {
	rows, err := s.store.Schedules(false)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return ok(c, rows)
}

func (s *Server) schedulesCreate(c echo.Context) error {
	var form scheduleForm
	if err := c.Bind(&form); err != nil {
		return fail(c, http.StatusBadRequest, err)
	}
	if form.Name == "" || form.CronExpr == "" {
		return fail(c, http.StatusBadRequest, errors.New("name and cron_expr are required"))
	}
	enabled := true
	if form.Enabled != nil {
		enabled = *form.Enabled
	}
	rec, err := s.scheduler.CreateSchedule(form.Name, form.CronExpr, enabled)
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}
	return ok(c, rec)
}

func (s *Server) schedulesDelete(c echo.Context) error {
	id := cast.ToInt64(c.Param("id"))
	if id == 0 {
		return fail(c, http.StatusBadRequest, errors.New("invalid schedule id"))
	}
	if err := s.store.DeleteSchedule(id); err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}
	return ack(c, "schedule deleted")
}

// analyticsError maps engine sentinels to HTTP statuses.
func analyticsError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, analytics.ErrNoData):
		return fail(c, http.StatusNotFound, err)
	case errors.Is(err, analytics.ErrUnknownMetric), errors.Is(err, analytics.ErrBadPeriod):
		return fail(c, http.StatusBadRequest, err)
	default:
		return fail(c, http.StatusInternalServerError, err)
	}
}
