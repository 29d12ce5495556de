package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/donorlink/internal/database"
)

// SQLStore はPostgreSQLまたはSQLiteの session_entries テーブルを使用するストア。
type SQLStore struct {
	db        *sql.DB
	dialect   database.Dialect
	namespace string
}

// NewSQLStore はマイグレーション済みの接続からSQLStoreを生成する。
func NewSQLStore(db *sql.DB, dialect database.Dialect, namespace string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, namespace: namespace}
}

// OpenSQLStore は接続を開き、マイグレーションを適用してからSQLStoreを返す。
func OpenSQLStore(ctx context.Context, databaseURL, namespace string) (*SQLStore, error) {
	db, dialect, err := database.Open(databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect session database: %w", err)
	}
	if err := database.RunMigrations(db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	return NewSQLStore(db, dialect, namespace), nil
}

// Get は指定キーの値を返す。
func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		database.Rebind(s.dialect, `SELECT value FROM session_entries WHERE namespace = ? AND entry_key = ?`),
		s.namespace, key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get session entry: %w", err)
	}
	return value, true, nil
}

// Put は全エントリを1トランザクションでUPSERTする。
func (s *SQLStore) Put(ctx context.Context, entries map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := database.Rebind(s.dialect,
		`INSERT INTO session_entries (namespace, entry_key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (namespace, entry_key)
		 DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	now := time.Now().UTC()
	for k, v := range entries {
		if _, err := tx.ExecContext(ctx, query, s.namespace, k, v, now); err != nil {
			return fmt.Errorf("failed to put session entry %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session entries: %w", err)
	}
	return nil
}

// Delete は指定キーを1トランザクションで削除する。
func (s *SQLStore) Delete(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := database.Rebind(s.dialect, `DELETE FROM session_entries WHERE namespace = ? AND entry_key = ?`)
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, query, s.namespace, k); err != nil {
			return fmt.Errorf("failed to delete session entry %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session delete: %w", err)
	}
	return nil
}

// Close は接続を閉じる。
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
