package config

// Default paths for databases
const (
	// DefaultDatabasePath is the diary database. It is the file that gets
	// backed up and replaced on restore.
	DefaultDatabasePath = "./diary.db"

	// DefaultStateDatabasePath holds settings, OAuth tokens, audit events
	// and sessions, which survive a restore.
	DefaultStateDatabasePath = "./voicediary-state.db"
)
