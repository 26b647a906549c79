package settingsstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/voicediary/internal/entities"
)

// DefaultBackupSchedule runs the backup daily at 03:00.
const DefaultBackupSchedule = "0 3 * * *"

// Backup providers.
const (
	BackupProviderLocal   = "local"
	BackupProviderDropbox = "dropbox"
	BackupProviderGoogle  = "google"
)

// BackupConfig is the effective backup configuration.
type BackupConfig struct {
	Provider string `json:"provider"`
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// BackupConfigInfo includes source information for each field.
type BackupConfigInfo struct {
	Provider       string `json:"provider"`
	ProviderSource Source `json:"provider_source"`

	Enabled       bool   `json:"enabled"`
	EnabledSource Source `json:"enabled_source"`

	Schedule            string     `json:"schedule"`
	ScheduleSource      Source     `json:"schedule_source"`
	ScheduleDescription string     `json:"schedule_description"`
	NextRunAt           *time.Time `json:"next_run_at,omitempty"`
}

// BackupStatus is the outcome of the last backup or restore.
type BackupStatus struct {
	LastAt  *time.Time `json:"last_at,omitempty"`
	Status  string     `json:"status,omitempty"` // "success", "failed", ""
	Message string     `json:"message,omitempty"`
}

// ValidBackupProvider reports whether name is a known provider.
func ValidBackupProvider(name string) bool {
	switch name {
	case BackupProviderLocal, BackupProviderDropbox, BackupProviderGoogle:
		return true
	}
	return false
}

// BackupProvider returns the backup provider (database > BACKUP_PROVIDER > "").
func (s *SettingsStore) BackupProvider(ctx context.Context) string {
	value, _ := s.lookup(ctx, entities.SettingKeyBackupProvider, "BACKUP_PROVIDER")
	return value
}

func (s *SettingsStore) BackupProviderSource(ctx context.Context) Source {
	_, source := s.lookup(ctx, entities.SettingKeyBackupProvider, "BACKUP_PROVIDER")
	return source
}

func (s *SettingsStore) SetBackupProvider(ctx context.Context, provider string) error {
	if !ValidBackupProvider(provider) {
		return fmt.Errorf("unknown backup provider %q", provider)
	}
	return s.repo.SetSetting(ctx, entities.SettingKeyBackupProvider, provider)
}

// BackupEnabled reports whether scheduled backups are on
// (database > BACKUP_SCHEDULE_ENABLED > false).
func (s *SettingsStore) BackupEnabled(ctx context.Context) bool {
	value, _ := s.lookup(ctx, entities.SettingKeyBackupEnabled, "BACKUP_SCHEDULE_ENABLED")
	return parseBool(value)
}

func (s *SettingsStore) BackupEnabledSource(ctx context.Context) Source {
	_, source := s.lookup(ctx, entities.SettingKeyBackupEnabled, "BACKUP_SCHEDULE_ENABLED")
	return source
}

func (s *SettingsStore) SetBackupEnabled(ctx context.Context, enabled bool) error {
	return s.repo.SetSetting(ctx, entities.SettingKeyBackupEnabled, strconv.FormatBool(enabled))
}

// BackupSchedule returns the cron schedule (database > BACKUP_SCHEDULE > daily 03:00).
func (s *SettingsStore) BackupSchedule(ctx context.Context) string {
	value, _ := s.lookup(ctx, entities.SettingKeyBackupSchedule, "BACKUP_SCHEDULE")
	if value == "" {
		return DefaultBackupSchedule
	}
	return value
}

func (s *SettingsStore) BackupScheduleSource(ctx context.Context) Source {
	_, source := s.lookup(ctx, entities.SettingKeyBackupSchedule, "BACKUP_SCHEDULE")
	return source
}

func (s *SettingsStore) SetBackupSchedule(ctx context.Context, schedule string) error {
	if err := ValidateCronSchedule(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule: %w", err)
	}
	return s.repo.SetSetting(ctx, entities.SettingKeyBackupSchedule, schedule)
}

// BackupConfig returns the effective configuration.
func (s *SettingsStore) BackupConfig(ctx context.Context) BackupConfig {
	return BackupConfig{
		Provider: s.BackupProvider(ctx),
		Enabled:  s.BackupEnabled(ctx),
		Schedule: s.BackupSchedule(ctx),
	}
}

// BackupConfigInfo returns the configuration with source information.
func (s *SettingsStore) BackupConfigInfo(ctx context.Context) BackupConfigInfo {
	schedule := s.BackupSchedule(ctx)
	info := BackupConfigInfo{
		Provider:            s.BackupProvider(ctx),
		ProviderSource:      s.BackupProviderSource(ctx),
		Enabled:             s.BackupEnabled(ctx),
		EnabledSource:       s.BackupEnabledSource(ctx),
		Schedule:            schedule,
		ScheduleSource:      s.BackupScheduleSource(ctx),
		ScheduleDescription: CronDescription(schedule),
	}
	if info.Enabled {
		if next, err := NextRunTime(schedule); err == nil {
			info.NextRunAt = next
		}
	}
	return info
}

// BackupStatus returns the last recorded backup outcome.
func (s *SettingsStore) BackupStatus(ctx context.Context) BackupStatus {
	var status BackupStatus

	values, err := s.repo.Values(ctx,
		entities.SettingKeyBackupLastAt,
		entities.SettingKeyBackupLastStatus,
		entities.SettingKeyBackupLastMessage,
	)
	if err != nil {
		return status
	}

	if ts, err := time.Parse(time.RFC3339, values[entities.SettingKeyBackupLastAt]); err == nil {
		status.LastAt = &ts
	}
	status.Status = values[entities.SettingKeyBackupLastStatus]
	status.Message = values[entities.SettingKeyBackupLastMessage]
	return status
}

// SetBackupStatus records the outcome of a backup or restore.
func (s *SettingsStore) SetBackupStatus(ctx context.Context, status, message string) error {
	return s.repo.SetSettings(ctx, map[string]string{
		entities.SettingKeyBackupLastAt:      time.Now().UTC().Format(time.RFC3339),
		entities.SettingKeyBackupLastStatus:  status,
		entities.SettingKeyBackupLastMessage: message,
	})
}

// ClearBackupSettings drops the database overrides, reverting to env/default.
func (s *SettingsStore) ClearBackupSettings(ctx context.Context) error {
	for _, key := range []string{
		entities.SettingKeyBackupProvider,
		entities.SettingKeyBackupEnabled,
		entities.SettingKeyBackupSchedule,
	} {
		if err := s.repo.DeleteSetting(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule validates a five-field cron schedule.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// CronDescription returns a human-readable description of a cron schedule.
func CronDescription(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "Every hour at :00"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	case DefaultBackupSchedule:
		return "Daily at 03:00"
	case "0 3 * * 0":
		return "Weekly on Sunday at 03:00"
	default:
		return "Custom schedule: " + schedule
	}
}

// NextRunTime calculates when the schedule fires next.
func NextRunTime(schedule string) (*time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(time.Now())
	return &next, nil
}
