// Package app wires the process together: logging, database, event bus,
// the collector and speed test services, scheduled jobs and the web API.
package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/talkincode/dishwatch/config"
	"github.com/talkincode/dishwatch/internal/analytics"
	"github.com/talkincode/dishwatch/internal/collector"
	"github.com/talkincode/dishwatch/internal/domain"
	"github.com/talkincode/dishwatch/internal/speedtest"
	"github.com/talkincode/dishwatch/internal/store"
	"github.com/talkincode/dishwatch/internal/telemetry"
	"github.com/talkincode/dishwatch/internal/weather"
	"github.com/talkincode/dishwatch/internal/webapi"
	"github.com/talkincode/dishwatch/pkg/metrics"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron
	bus       EventBus.Bus

	store      *store.Store
	engine     *analytics.Engine
	collector  *collector.Collector
	sptEngine  *speedtest.Engine
	sptSched   *speedtest.Scheduler
	weatherSvc *weather.Service
	webServer  *webapi.Server
}

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
	a.store = store.NewStore(db)
}

func (a *Application) Store() *store.Store            { return a.store }
func (a *Application) Analytics() *analytics.Engine   { return a.engine }
func (a *Application) Collector() *collector.Collector { return a.collector }
func (a *Application) WebServer() *webapi.Server      { return a.webServer }

func (a *Application) Init(cfg *config.AppConfig) {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	a.initLogger(cfg)

	// Initialize metrics with workdir convention
	err = metrics.InitMetrics(cfg.System.Workdir)
	if err != nil {
		zap.S().Warn("Failed to initialize metrics:", err)
	}

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	a.gormDB = getDatabase(cfg.Database, cfg.System.Workdir)
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before services start
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	a.bus = EventBus.New()
	a.store = store.NewStore(a.gormDB)
	a.engine = analytics.NewEngine(a.store)

	if cfg.Weather.ApiKey != "" {
		a.weatherSvc = weather.NewService(cfg.Weather.ApiKey, cfg.Weather.Latitude, cfg.Weather.Longitude)
	}

	source := telemetry.NewHTTPSource(cfg.Dish.Address,
		time.Duration(cfg.Dish.Timeout)*time.Second)

	var provider collector.WeatherProvider
	if a.weatherSvc != nil {
		provider = a.weatherSvc
	}
	a.collector = collector.New(collector.Config{
		Interval:         time.Duration(cfg.Collector.Interval) * time.Second,
		WeatherInterval:  time.Duration(cfg.Collector.WeatherInterval) * time.Second,
		AnalysisInterval: time.Duration(cfg.Collector.AnalysisInterval) * time.Second,
	}, a.store, source, provider, a.engine, a.bus)

	a.sptEngine = speedtest.NewEngine(a.store, cfg.SpeedTest)
	a.sptSched = speedtest.NewScheduler(a.store, a.sptEngine)

	a.webServer = webapi.NewServer(cfg.Web, a.store, a.engine, a.collector,
		a.sptEngine, a.sptSched, a.weatherSvc)

	a.initEventSubscribers()
	a.checkDefaultSchedules()
	a.initJob()
}

func (a *Application) initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.Logger.FileEnable {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, cfg.Logger.Filename)
	}

	var logger *zap.Logger
	var err error
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	} else {
		logger, err = zapConfig.Build(zap.AddCaller(), zap.AddCallerSkip(1))
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEBUG_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	if track {
		if err := a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	} else {
		if err := a.gormDB.Migrator().AutoMigrate(domain.Tables...); err != nil {
			zap.S().Error(err)
		}
	}
	return nil
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Start launches the background services: the collector loop and the
// speed test scheduler. The web server is started separately by the caller
// so it can own the listener error.
func (a *Application) Start() {
	a.collector.Start()
	a.sptSched.Start()
}

// Release stops background services and releases application resources.
func (a *Application) Release() {
	if a.collector != nil {
		a.collector.Stop()
	}
	if a.sptSched != nil {
		a.sptSched.Stop()
	}
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = a.webServer.Shutdown(ctx)
		cancel()
	}

	_ = metrics.Close()
	_ = zap.L().Sync()
}
