// internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"smartfuel/internal/models"
)

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage, err := NewSQLiteStorageFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// NewSQLiteStorageFromDB wraps an already opened database and ensures the schema exists.
func NewSQLiteStorageFromDB(db *sql.DB) (*SQLiteStorage, error) {
	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema(ctx context.Context) error {
	schema := `
    CREATE TABLE IF NOT EXISTS biomarker_readings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id TEXT NOT NULL,
        type TEXT NOT NULL,
        value REAL NOT NULL,
        recorded_at TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS nutrition_profiles (
        user_id TEXT PRIMARY KEY,
        dietary_preferences TEXT NOT NULL,
        allergies TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS guidance_history (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        rules_version TEXT NOT NULL,
        guidance TEXT NOT NULL,
        created_at TEXT NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_readings_user ON biomarker_readings(user_id, id);
    CREATE INDEX IF NOT EXISTS idx_guidance_user_created ON guidance_history(user_id, created_at);
    `

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveReadings appends readings for a user in a single transaction.
func (s *SQLiteStorage) SaveReadings(ctx context.Context, userID string, readings []models.Reading) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO biomarker_readings (user_id, type, value, recorded_at, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	now := formatTime(time.Now())
	for _, r := range readings {
		_, err = tx.ExecContext(ctx, query, userID, r.Type, r.Value, formatTime(r.RecordedAt), now)
		if err != nil {
			return fmt.Errorf("failed to insert reading: %w", err)
		}
	}

	return tx.Commit()
}

// GetReadings returns every stored reading for a user in insertion order.
func (s *SQLiteStorage) GetReadings(ctx context.Context, userID string) ([]models.Reading, error) {
	query := `
        SELECT type, value, recorded_at
        FROM biomarker_readings
        WHERE user_id = ?
        ORDER BY id
    `

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var recordedAtStr string
		if err := rows.Scan(&r.Type, &r.Value, &recordedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if r.RecordedAt, err = parseTime(recordedAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// SaveProfile creates or replaces the nutrition profile of a user.
func (s *SQLiteStorage) SaveProfile(ctx context.Context, userID string, profile models.NutritionProfile) error {
	prefs, err := json.Marshal(nonNil(profile.DietaryPreferences))
	if err != nil {
		return fmt.Errorf("failed to encode dietary preferences: %w", err)
	}
	allergies, err := json.Marshal(nonNil(profile.Allergies))
	if err != nil {
		return fmt.Errorf("failed to encode allergies: %w", err)
	}

	query := `
        INSERT INTO nutrition_profiles (user_id, dietary_preferences, allergies, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            dietary_preferences = excluded.dietary_preferences,
            allergies = excluded.allergies,
            updated_at = excluded.updated_at
    `
	if _, err := s.db.ExecContext(ctx, query, userID, string(prefs), string(allergies), formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

// GetProfile returns nil without error when the user has no profile.
func (s *SQLiteStorage) GetProfile(ctx context.Context, userID string) (*models.NutritionProfile, error) {
	query := `
        SELECT dietary_preferences, allergies
        FROM nutrition_profiles
        WHERE user_id = ?
    `

	var prefsStr, allergiesStr string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&prefsStr, &allergiesStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	profile := &models.NutritionProfile{}
	if err := json.Unmarshal([]byte(prefsStr), &profile.DietaryPreferences); err != nil {
		return nil, fmt.Errorf("failed to decode dietary preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(allergiesStr), &profile.Allergies); err != nil {
		return nil, fmt.Errorf("failed to decode allergies: %w", err)
	}

	return profile, nil
}

// SaveGuidance stores a guidance result, assigning an ID and timestamp when missing.
func (s *SQLiteStorage) SaveGuidance(ctx context.Context, record *models.GuidanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	body, err := json.Marshal(record.Guidance)
	if err != nil {
		return fmt.Errorf("failed to encode guidance: %w", err)
	}

	query := `
        INSERT INTO guidance_history (id, user_id, rules_version, guidance, created_at)
        VALUES (?, ?, ?, ?, ?)
    `
	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.RulesVersion, string(body), formatTime(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert guidance: %w", err)
	}

	return nil
}

// GetGuidanceHistory returns a user's guidance, newest first. A limit <= 0 returns everything.
func (s *SQLiteStorage) GetGuidanceHistory(ctx context.Context, userID string, limit int) ([]*models.GuidanceRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
        SELECT id, user_id, rules_version, guidance, created_at
        FROM guidance_history
        WHERE user_id = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query guidance history: %w", err)
	}
	defer rows.Close()

	var records []*models.GuidanceRecord
	for rows.Next() {
		record := &models.GuidanceRecord{}
		var body, createdAtStr string

		if err := rows.Scan(&record.ID, &record.UserID, &record.RulesVersion, &body, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan guidance: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &record.Guidance); err != nil {
			return nil, fmt.Errorf("failed to decode guidance %s: %w", record.ID, err)
		}
		if record.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guidance history: %w", err)
	}

	return records, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
