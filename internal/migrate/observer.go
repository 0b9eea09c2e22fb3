package migrate

import "time"

// EventType names a phase of a migration
type EventType string

const (
	EventMigrationStart  EventType = "migration_start"
	EventTableCreated    EventType = "table_created"
	EventColumnDropped   EventType = "column_dropped"
	EventColumnAdded     EventType = "column_added"
	EventCatalogWritten  EventType = "catalog_written"
	EventMigrationEnd    EventType = "migration_end"
	EventMigrationFailed EventType = "migration_failed"
)

// Event is delivered to observers at each migration phase
type Event struct {
	Type        EventType
	MigrationID string
	Table       string
	Timestamp   time.Time
	Data        interface{} // phase-specific: the column op, the diff, or the error
}

// Observer receives migration events synchronously, in order
type Observer interface {
	OnEvent(event Event)
}
