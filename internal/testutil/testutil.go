package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenbasket/shop/internal/models"
)

// OpenDB returns an isolated in-memory database migrated with the full
// schema. SQLite allows a single writer, so the pool is pinned to one
// connection; transaction semantics are what the repos rely on either way.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// RecordedEvent is one published event, with the payload kept as JSON so
// tests can assert on it regardless of the concrete event type.
type RecordedEvent struct {
	Topic string
	Key   string
	Value map[string]any
}

// RecorderPublisher stands in for the kafka producer in tests.
type RecorderPublisher struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func (p *RecorderPublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var value map[string]any
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, RecordedEvent{Topic: topic, Key: key, Value: value})
	return nil
}

func (p *RecorderPublisher) Events(topic string) []RecordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []RecordedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func (p *RecorderPublisher) EventTypes(topic string) []string {
	var out []string
	for _, e := range p.Events(topic) {
		if t, ok := e.Value["type"].(string); ok {
			out = append(out, t)
		}
	}
	return out
}
