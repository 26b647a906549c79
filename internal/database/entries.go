package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/events"
)

const entryOrder = "created_at DESC, id DESC"

// Create inserts an entry stamped with the current time and returns its id.
func (s *Store) Create(ctx context.Context, title, content string) (int64, error) {
	return s.insert(ctx, title, content, entities.Timestamp{})
}

// CreateAt inserts an entry with an explicit creation time.
func (s *Store) CreateAt(ctx context.Context, title, content string, createdAt time.Time) (int64, error) {
	if createdAt.IsZero() {
		return 0, &WriteError{Op: "create", Err: errors.New("creation time must be set")}
	}
	return s.insert(ctx, title, content, entities.NewTimestamp(createdAt))
}

func (s *Store) insert(ctx context.Context, title, content string, createdAt entities.Timestamp) (int64, error) {
	if err := validateEntry(title, content); err != nil {
		return 0, &WriteError{Op: "create", Err: err}
	}

	entry := entities.DiaryEntry{
		Title:     title,
		Content:   content,
		CreatedAt: createdAt,
	}
	err := s.withDB(ctx, func(db *gorm.DB) error {
		if createdAt.IsZero() {
			// Let the column default stamp the row.
			db = db.Omit("CreatedAt")
		}
		return db.Create(&entry).Error
	})
	if err != nil {
		return 0, writeError("create", 0, err)
	}

	s.bus.Publish(events.Event{Kind: events.KindWrite})
	return entry.ID, nil
}

// List returns every entry, newest first. Read failures are logged and
// yield an empty slice.
func (s *Store) List(ctx context.Context) []entities.DiaryEntry {
	return s.find(ctx, "list", func(db *gorm.DB) *gorm.DB {
		return db
	})
}

// Search returns entries whose title or content contains query, ignoring ASCII
// case, in List order. Other letters match exactly. An empty query matches
// every entry.
func (s *Store) Search(ctx context.Context, query string) []entities.DiaryEntry {
	pattern := "%" + escapeLike(query) + "%"
	return s.find(ctx, "search", func(db *gorm.DB) *gorm.DB {
		return db.Where(`LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(content) LIKE LOWER(?) ESCAPE '\'`, pattern, pattern)
	})
}

// ListByDate returns the entries created on day (YYYY-MM-DD, UTC).
func (s *Store) ListByDate(ctx context.Context, day string) []entities.DiaryEntry {
	if _, err := time.Parse(entities.DateKeyLayout, day); err != nil {
		log.Printf("[store] %v", &ReadError{Op: "list by date", Err: err})
		return []entities.DiaryEntry{}
	}
	return s.find(ctx, "list by date", func(db *gorm.DB) *gorm.DB {
		return db.Where("substr(created_at, 1, 10) = ?", day)
	})
}

// EntryDates returns the distinct days that have at least one entry,
// newest first.
func (s *Store) EntryDates(ctx context.Context) []string {
	dates := []string{}
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Raw(`SELECT DISTINCT substr(created_at, 1, 10) AS day
			FROM diary_entries
			WHERE created_at IS NOT NULL
			ORDER BY day DESC`).Scan(&dates).Error
	})
	if err != nil {
		log.Printf("[store] %v", readError("entry dates", err))
		return []string{}
	}
	return dates
}

// Get returns a single entry or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*entities.DiaryEntry, error) {
	var found []entities.DiaryEntry
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).Limit(1).Find(&found).Error
	})
	if err != nil {
		return nil, readError("get", err)
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Model(&entities.DiaryEntry{}).Count(&n).Error
	})
	if err != nil {
		return 0, readError("count", err)
	}
	return n, nil
}

// Update replaces the title and content of an existing entry. The id and
// creation time never change. A missing id is reported as ErrNotFound.
func (s *Store) Update(ctx context.Context, id int64, title, content string) error {
	if err := validateEntry(title, content); err != nil {
		return &WriteError{Op: "update", ID: id, Err: err}
	}

	var affected int64
	err := s.withDB(ctx, func(db *gorm.DB) error {
		result := db.Model(&entities.DiaryEntry{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"title":   title,
				"content": content,
			})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return writeError("update", id, err)
	}
	if affected == 0 {
		return &WriteError{Op: "update", ID: id, Err: ErrNotFound}
	}

	s.bus.Publish(events.Event{Kind: events.KindWrite})
	return nil
}

// Delete removes the entry with id. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Where("id = ?", id).Delete(&entities.DiaryEntry{}).Error
	})
	if err != nil {
		return writeError("delete", id, err)
	}

	s.bus.Publish(events.Event{Kind: events.KindWrite})
	return nil
}

// Snapshot writes a consistent copy of the database to dst, which must not
// exist yet.
func (s *Store) Snapshot(ctx context.Context, dst string) error {
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Exec("VACUUM INTO ?", dst).Error
	})
	if err != nil {
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	return nil
}

func (s *Store) find(ctx context.Context, op string, scope func(*gorm.DB) *gorm.DB) []entities.DiaryEntry {
	entries := []entities.DiaryEntry{}
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return scope(db.Model(&entities.DiaryEntry{})).Order(entryOrder).Find(&entries).Error
	})
	if err != nil {
		log.Printf("[store] %v", readError(op, err))
		return []entities.DiaryEntry{}
	}
	return entries
}

func validateEntry(title, content string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return ErrInvalidEntry
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
