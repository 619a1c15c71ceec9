package app

import (
	"go.uber.org/zap"

	"github.com/talkincode/dishwatch/internal/domain"
)

// checkDefaultSchedules seeds the default recurring speed test when the
// schedule table is empty, so a fresh install measures throughput daily
// without any operator action.
func (a *Application) checkDefaultSchedules() {
	var count int64
	a.gormDB.Model(&domain.SpeedTestSchedule{}).Count(&count)
	if count > 0 {
		return
	}

	// 03:30 local time, when the link is usually idle
	rec, err := a.sptSched.CreateSchedule("Daily speed test", "30 3 * * *", true)
	if err != nil {
		zap.L().Error("failed to create default speed test schedule", zap.Error(err))
		return
	}
	zap.L().Info("initialized default speed test schedule",
		zap.String("name", rec.Name),
		zap.String("cron", rec.CronExpr))
}
