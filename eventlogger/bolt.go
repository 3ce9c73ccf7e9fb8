package eventlogger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const BucketEvents = "events"

type boltEventLogger struct {
	db *bolt.DB
}

// NewBoltEventLogger stores events in the events bucket of an open bbolt
// database, keyed by insertion sequence.
func NewBoltEventLogger(db *bolt.DB) (*boltEventLogger, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketEvents))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", BucketEvents, err)
	}
	return &boltEventLogger{db: db}, nil
}

type storedEvent struct {
	Event
	Data     json.RawMessage `json:"event_data,omitempty"`
	Metadata json.RawMessage `json:"event_metadata,omitempty"`
}

func (el *boltEventLogger) Save(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return el.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketEvents))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

func (el *boltEventLogger) GetByType(ctx context.Context, eventType string) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := make([]Event, 0)
	err := el.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketEvents)).ForEach(func(_, v []byte) error {
			var stored storedEvent
			if err := json.Unmarshal(v, &stored); err != nil {
				return err
			}
			if stored.Event.Type != eventType {
				return nil
			}
			event := stored.Event
			if err := decodeStored(stored.Data, stored.Metadata, &event); err != nil {
				return err
			}
			events = append(events, event)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
