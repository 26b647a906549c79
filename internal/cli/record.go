package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/entrypoint"
	"github.com/mrlokans/voicediary/internal/transcribe"
)

// RecordCommand transcribes an audio file into a new diary entry.
type RecordCommand struct {
	AudioPath string

	config *config.Config
}

// NewRecordCommand creates a new RecordCommand
func NewRecordCommand() *RecordCommand {
	return &RecordCommand{}
}

// ParseFlags parses command line flags
func (cmd *RecordCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	cmd.config = config.NewConfig()
	addDatabaseFlags(fs, cmd.config)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s record [options] <audio-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Transcribe a voice memo with Gemini and store it as a diary entry.\n")
		fmt.Fprintf(os.Stderr, "The audio file is left in place.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("exactly one audio file is required")
	}

	cmd.AudioPath = fs.Arg(0)
	if !transcribe.SupportedExtension(cmd.AudioPath) {
		return fmt.Errorf("unsupported audio format: %s", cmd.AudioPath)
	}
	if _, err := os.Stat(cmd.AudioPath); err != nil {
		return fmt.Errorf("audio file not readable: %w", err)
	}
	return nil
}

// Run executes the record command
func (cmd *RecordCommand) Run() error {
	app, err := entrypoint.NewApp(cmd.config)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Printf("Transcribing %s...\n", cmd.AudioPath)
	entry, err := app.Recorder.Record(context.Background(), cmd.AudioPath)
	if err != nil {
		return err
	}

	fmt.Printf("\nCreated entry #%d\n\n", entry.ID)
	printEntry(os.Stdout, *entry)
	return nil
}
