package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/voicediary/internal/cli"
	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/entrypoint"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is what every CLI subcommand implements.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		cfg := config.NewConfig()
		entrypoint.Run(cfg, Version)
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "record":
		cmd = cli.NewRecordCommand()
	case "entries":
		cmd = cli.NewEntriesCommand()
	case "backup", "restore", "backup-delete", "backup-status":
		cmd = cli.NewBackupCommand(cli.BackupAction(name))
	case "dropbox-auth":
		cmd = cli.NewDropboxAuthCommand()
	case "google-auth":
		cmd = cli.NewGoogleAuthCommand()
	case "gen-key":
		cmd = cli.NewGenKeyCommand()
	case "version", "--version":
		fmt.Printf("voicediary %s (%s)\n", Version, Commit)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve          Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  record         Transcribe an audio file into a new diary entry\n")
	fmt.Fprintf(os.Stderr, "  entries        List, search or show entries for a day\n")
	fmt.Fprintf(os.Stderr, "  backup         Upload the diary database to the backup provider\n")
	fmt.Fprintf(os.Stderr, "  restore        Replace the diary database with the remote backup\n")
	fmt.Fprintf(os.Stderr, "  backup-delete  Delete the remote backup\n")
	fmt.Fprintf(os.Stderr, "  backup-status  Show whether a remote backup exists\n")
	fmt.Fprintf(os.Stderr, "  dropbox-auth   Connect a Dropbox account for backups\n")
	fmt.Fprintf(os.Stderr, "  google-auth    Connect a Google Drive account for backups\n")
	fmt.Fprintf(os.Stderr, "  gen-key        Generate a token encryption key\n")
	fmt.Fprintf(os.Stderr, "  version        Print version information\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
