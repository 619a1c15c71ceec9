package domain

var Tables = []interface{}{
	// Telemetry
	&ConnectionMetric{},
	&OutageRecord{},
	&PerformanceEvent{},
	// Rollups
	&DailyStat{},
	&HourlyPerformance{},
	// Speed tests
	&SpeedTestResult{},
	&SpeedTestSchedule{},
	// Ambient
	&WeatherSample{},
}
