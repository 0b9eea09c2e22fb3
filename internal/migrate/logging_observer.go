package migrate

import (
	"context"
	"log/slog"
)

// LoggingObserver logs every migration event
type LoggingObserver struct {
	logger *slog.Logger
}

func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

func (lo *LoggingObserver) OnEvent(event Event) {
	level := slog.LevelInfo
	if event.Type == EventMigrationFailed {
		level = slog.LevelError
	}
	lo.logger.Log(context.Background(), level, "schema_migration",
		"event", event.Type,
		"migration_id", event.MigrationID,
		"table", event.Table,
		"data", event.Data,
	)
}
