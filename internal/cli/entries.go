package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/entrypoint"
)

// EntriesCommand lists, searches or shows diary entries.
type EntriesCommand struct {
	Query string
	Date  string
	JSON  bool

	config *config.Config
}

// NewEntriesCommand creates a new EntriesCommand
func NewEntriesCommand() *EntriesCommand {
	return &EntriesCommand{}
}

// ParseFlags parses command line flags
func (cmd *EntriesCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("entries", flag.ExitOnError)
	cmd.config = config.NewConfig()
	addDatabaseFlags(fs, cmd.config)

	fs.StringVar(&cmd.Query, "q", "", "Only show entries whose title or content contains this text")
	fs.StringVar(&cmd.Date, "date", "", "Only show entries written on this day (YYYY-MM-DD, UTC)")
	fs.BoolVar(&cmd.JSON, "json", false, "Print entries as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s entries [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print diary entries, newest first.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Date != "" {
		if _, err := time.Parse(time.DateOnly, cmd.Date); err != nil {
			return fmt.Errorf("invalid -date %q: use YYYY-MM-DD", cmd.Date)
		}
	}
	return nil
}

// Run executes the entries command
func (cmd *EntriesCommand) Run() error {
	app, err := entrypoint.NewApp(cmd.config)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	var entries []entities.DiaryEntry
	switch {
	case cmd.Query != "" && cmd.Date != "":
		entries = onDay(app.Store.Search(ctx, cmd.Query), cmd.Date)
	case cmd.Date != "":
		entries = app.Store.ListByDate(ctx, cmd.Date)
	case cmd.Query != "":
		entries = app.Store.Search(ctx, cmd.Query)
	default:
		entries = app.Store.List(ctx)
	}

	if cmd.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No entries found.")
		return nil
	}
	for i, entry := range entries {
		if i > 0 {
			fmt.Println(strings.Repeat("-", 60))
		}
		printEntry(os.Stdout, entry)
	}
	return nil
}

func onDay(entries []entities.DiaryEntry, day string) []entities.DiaryEntry {
	out := []entities.DiaryEntry{}
	for _, e := range entries {
		if e.DateKey() == day {
			out = append(out, e)
		}
	}
	return out
}

func printEntry(w io.Writer, entry entities.DiaryEntry) {
	fmt.Fprintf(w, "#%d  %s  %s\n\n", entry.ID, entry.CreatedAt.UTC().Format("2006-01-02 15:04"), entry.Title)
	fmt.Fprintln(w, entry.Content)
}

// addDatabaseFlags registers the flags every diary command shares.
func addDatabaseFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "Path to the diary database")
	fs.StringVar(&cfg.Database.StatePath, "state-db", cfg.Database.StatePath, "Path to the settings and audit database")
}
