package eventlogger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type sqlEventLogger struct {
	db *sql.DB
}

func NewSqlEventLogger(db *sql.DB) *sqlEventLogger {
	return &sqlEventLogger{
		db: db,
	}
}

func (el *sqlEventLogger) Save(ctx context.Context, e Event) error {
	jsonData, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encoding event data: %w", err)
	}
	jsonMetadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encoding event metadata: %w", err)
	}
	statement := `INSERT INTO events (id, event_type, event_data, event_metadata, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = el.db.ExecContext(ctx, statement, e.ID, e.Type, jsonData, jsonMetadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

func (el *sqlEventLogger) GetByType(ctx context.Context, eventType string) ([]Event, error) {
	query := `SELECT id, event_type, event_data, event_metadata, created_at FROM events WHERE event_type = $1 ORDER BY created_at ASC`
	result, err := el.db.QueryContext(ctx, query, eventType)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer result.Close()

	events := make([]Event, 0)
	for result.Next() {
		var event Event
		var jsonData, jsonMetadata []byte
		if err := result.Scan(&event.ID, &event.Type, &jsonData, &jsonMetadata, &event.CreatedAt); err != nil {
			return events, err
		}
		if err := decodeStored(jsonData, jsonMetadata, &event); err != nil {
			return events, err
		}

		events = append(events, event)
	}

	if err := result.Err(); err != nil {
		return events, err
	}

	return events, nil
}

// decodeStored fills the payload and metadata of an event read back from a
// sink. The payload comes back as generic JSON values.
func decodeStored(data, metadata []byte, e *Event) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, &e.Data); err != nil {
			return fmt.Errorf("decoding event data: %w", err)
		}
	}
	e.Metadata = make(map[string]string)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return fmt.Errorf("decoding event metadata: %w", err)
		}
	}
	return nil
}
