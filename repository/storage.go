package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// StorageEntryModel is the Bun model for persisted client state.
type StorageEntryModel struct {
	bun.BaseModel `bun:"table:client_storage"`

	Key       string    `bun:"key,pk"`
	Value     []byte    `bun:"value,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Storage implements auth.Storage on a SQL table.
type Storage struct {
	db *bun.DB
}

var _ auth.Storage = (*Storage)(nil)

// NewStorage wraps db. Call Migrate before use.
func NewStorage(db *bun.DB) *Storage {
	return &Storage{db: db}
}

// OpenSQLite opens dsn with the sqlite shim and returns a ready to use
// storage. The caller closes the returned db.
func OpenSQLite(ctx context.Context, dsn string) (*Storage, *bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open storage database").
			WithTextCode(auth.TextCodeStorageFailure)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	storage := NewStorage(db)
	if err := storage.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return storage, db, nil
}

// Migrate creates the storage table.
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*StorageEntryModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "migrate client storage").
			WithTextCode(auth.TextCodeStorageFailure)
	}
	return nil
}

// Load implements auth.Storage.
func (s *Storage) Load(ctx context.Context, key string) ([]byte, error) {
	var model StorageEntryModel
	err := s.db.NewSelect().
		Model(&model).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "load client storage").
			WithTextCode(auth.TextCodeStorageFailure).
			WithMetadata(map[string]any{"key": key})
	}
	return model.Value, nil
}

// Save implements auth.Storage.
func (s *Storage) Save(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC()
	model := &StorageEntryModel{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "save client storage").
			WithTextCode(auth.TextCodeStorageFailure).
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Delete implements auth.Storage.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*StorageEntryModel)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "delete client storage").
			WithTextCode(auth.TextCodeStorageFailure).
			WithMetadata(map[string]any{"key": key})
	}
	return nil
}

// Keys lists stored keys, oldest first.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.NewSelect().
		Model((*StorageEntryModel)(nil)).
		Column("key").
		Order("created_at ASC", "key ASC").
		Scan(ctx, &keys)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "list client storage").
			WithTextCode(auth.TextCodeStorageFailure)
	}
	return keys, nil
}
