package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/redis"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV is the durable session-scoped key/value record behind the mirror.
// Writes replace the whole value; there is no locking between writers.
type KV interface {
	Get(ctx context.Context, sessionID, name string) (string, bool, error)
	Set(ctx context.Context, sessionID, name, value string) error
	Delete(ctx context.Context, sessionID string, names ...string) error
	Ping(ctx context.Context) error
}

// MemoryKV keeps entries in process memory; used in tests and local development.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]map[string]string{}}
}

func (m *MemoryKV) Get(_ context.Context, sessionID, name string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[sessionID][name]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, sessionID, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.data[sessionID]
	if !ok {
		entries = map[string]string{}
		m.data[sessionID] = entries
	}
	entries[name] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, sessionID string, names ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		delete(m.data[sessionID], name)
	}
	return nil
}

func (m *MemoryKV) Ping(context.Context) error { return nil }

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Touch(ctx context.Context, key string, ttl time.Duration) error
	SessionKey(sessionID, name string) string
	Ping(ctx context.Context) error
}

// RedisKV stores each entry under its own namespaced key with a sliding TTL.
type RedisKV struct {
	client redisStore
	ttl    time.Duration
}

func NewRedisKV(client redisStore, ttl time.Duration) *RedisKV {
	return &RedisKV{client: client, ttl: ttl}
}

func (r *RedisKV) Get(ctx context.Context, sessionID, name string) (string, bool, error) {
	key := r.client.SessionKey(sessionID, name)
	val, err := r.client.Get(ctx, key)
	if errors.Is(err, redis.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// A failed refresh only shortens the session; the read still stands.
	_ = r.client.Touch(ctx, key, r.ttl)
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, sessionID, name, value string) error {
	return r.client.Set(ctx, r.client.SessionKey(sessionID, name), value, r.ttl)
}

func (r *RedisKV) Delete(ctx context.Context, sessionID string, names ...string) error {
	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, r.client.SessionKey(sessionID, name))
	}
	return r.client.Del(ctx, keys...)
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Entry is the SQL row of the gorm-backed driver. The table is owned by the
// goose migrations in pkg/migrate.
type Entry struct {
	SessionID string `gorm:"column:session_id;primaryKey;size:128"`
	Name      string `gorm:"column:name;primaryKey;size:128"`
	Value     string `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "mirror_entries" }

// GormKV keeps entries in one table; works with the postgres and sqlite dialects.
type GormKV struct {
	db *gorm.DB
}

func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{db: db}
}

func (g *GormKV) Get(ctx context.Context, sessionID, name string) (string, bool, error) {
	var entry Entry
	err := g.db.WithContext(ctx).
		Where("session_id = ? AND name = ?", sessionID, name).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (g *GormKV) Set(ctx context.Context, sessionID, name, value string) error {
	entry := Entry{SessionID: sessionID, Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (g *GormKV) Delete(ctx context.Context, sessionID string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).
		Where("session_id = ? AND name IN ?", sessionID, names).
		Delete(&Entry{}).Error
}

func (g *GormKV) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
