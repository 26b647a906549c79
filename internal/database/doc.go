// Package database provides the data access layer for the diary.
//
// # Architecture
//
//	database/
//	├── store.go      # Store: lazy, resettable connection to the diary file
//	├── entries.go    # CRUD, search and calendar queries over diary_entries
//	├── schema.sql    # Idempotent schema applied on every (re)open
//	├── state.go      # StateDB: settings, OAuth tokens, audit events, sessions
//	├── settings/     # Settings repository (state DB)
//	└── audit/        # Audit event repository (state DB)
//
// The diary file is the unit of backup and restore, so it holds nothing but
// diary_entries. Everything else lives in the state database.
//
// # Store lifecycle
//
//	store := database.Open("./diary.db", bus)
//	defer store.Close()
//
//	id, err := store.Create(ctx, "Morning", "Coffee by the window.")
//	entries := store.List(ctx)
//
//	// Swap in a downloaded backup, then reopen:
//	err = store.Replace("./.restore.db")
//	err = store.Initialize(ctx)
//
//	// After another process has replaced ./diary.db:
//	store.Reset()
//
// Write operations return *WriteError (or *InitError when the file cannot be
// opened). List, Search, ListByDate and EntryDates never fail; they log the
// *ReadError and return an empty result.
package database
