// Package webapi exposes the HTTP surface: health probe, live status,
// analytics queries, reports with CSV export, outage history and speed
// test control.
package webapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/config"
	"github.com/talkincode/dishwatch/internal/analytics"
	"github.com/talkincode/dishwatch/internal/collector"
	"github.com/talkincode/dishwatch/internal/speedtest"
	"github.com/talkincode/dishwatch/internal/store"
	"github.com/talkincode/dishwatch/internal/weather"
)

type Server struct {
	root      *echo.Echo
	cfg       config.WebConfig
	store     *store.Store
	engine    *analytics.Engine
	collector *collector.Collector
	sptEngine *speedtest.Engine
	scheduler *speedtest.Scheduler
	weather   *weather.Service
}

func NewServer(
	cfg config.WebConfig,
	st *store.Store,
	engine *analytics.Engine,
	coll *collector.Collector,
	sptEngine *speedtest.Engine,
	scheduler *speedtest.Scheduler,
	wsvc *weather.Service,
) *Server {
	s := &Server{
		cfg:       cfg,
		store:     st,
		engine:    engine,
		collector: coll,
		sptEngine: sptEngine,
		scheduler: scheduler,
		weather:   wsvc,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.S().Debugf("%s %s -> %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	s.root = e
	s.initRouter()
	return s
}

func (s *Server) initRouter() {
	s.root.GET("/health", s.health)

	api := s.root.Group("/api")
	api.GET("/status", s.status)
	api.GET("/summary", s.summary)
	api.GET("/trend", s.trend)
	api.GET("/comparison", s.comparison)
	api.GET("/advanced", s.advanced)
	api.GET("/insights", s.insights)
	api.GET("/metrics", s.metrics)
	api.GET("/events", s.events)
	api.GET("/outages", s.outages)
	api.GET("/weather", s.weatherNow)

	api.GET("/reports/daily", s.reportDaily)
	api.GET("/reports/weekly", s.reportWeekly)
	api.GET("/reports/monthly", s.reportMonthly)

	api.POST("/speedtest/run", s.speedtestRun)
	api.POST("/speedtest/cancel", s.speedtestCancel)
	api.GET("/speedtest/results", s.speedtestResults)
	api.GET("/speedtest/summary", s.speedtestSummary)
	api.GET("/speedtest/trend", s.speedtestTrend)
	api.GET("/speedtest/schedules", s.schedulesList)
	api.POST("/speedtest/schedules", s.schedulesCreate)
	api.DELETE("/speedtest/schedules/:id", s.schedulesDelete)
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	zap.S().Infof("web server listening on %s", addr)
	err := s.root.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.root.Shutdown(ctx)
}

// restResult is the uniform JSON envelope for non-list errors and simple acks.
type restResult struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, data)
}

func ack(c echo.Context, msg string) error {
	return c.JSON(http.StatusOK, restResult{Code: 0, Msg: msg})
}

func fail(c echo.Context, status int, err error) error {
	return c.JSON(status, restResult{Code: 1, Msg: err.Error()})
}
