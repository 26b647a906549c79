package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/entrypoint"
)

// BackupAction selects what BackupCommand does.
type BackupAction string

const (
	BackupActionBackup  BackupAction = "backup"
	BackupActionRestore BackupAction = "restore"
	BackupActionDelete  BackupAction = "backup-delete"
	BackupActionStatus  BackupAction = "backup-status"
)

// BackupCommand uploads, restores or removes the remote diary backup using
// the provider chosen in settings.
type BackupCommand struct {
	Action BackupAction
	Yes    bool

	config *config.Config
}

// NewBackupCommand creates a BackupCommand for action.
func NewBackupCommand(action BackupAction) *BackupCommand {
	return &BackupCommand{Action: action}
}

// ParseFlags parses command line flags
func (cmd *BackupCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet(string(cmd.Action), flag.ExitOnError)
	cmd.config = config.NewConfig()
	addDatabaseFlags(fs, cmd.config)
	if cmd.Action == BackupActionRestore || cmd.Action == BackupActionDelete {
		fs.BoolVar(&cmd.Yes, "yes", false, "Do not ask for confirmation")
	}

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [options]\n\n", os.Args[0], cmd.Action)
		switch cmd.Action {
		case BackupActionBackup:
			fmt.Fprintf(os.Stderr, "Upload a snapshot of the diary to the configured backup provider.\n\n")
		case BackupActionRestore:
			fmt.Fprintf(os.Stderr, "Replace the local diary with the remote backup.\n\n")
		case BackupActionDelete:
			fmt.Fprintf(os.Stderr, "Delete the remote backup.\n\n")
		case BackupActionStatus:
			fmt.Fprintf(os.Stderr, "Show the backup provider and the last backup.\n\n")
		}
		fmt.Fprintf(os.Stderr, "The provider is read from settings (BACKUP_PROVIDER or PUT /api/settings).\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the backup command
func (cmd *BackupCommand) Run() error {
	app, err := entrypoint.NewApp(cmd.config)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := context.Background()
	switch cmd.Action {
	case BackupActionBackup:
		result, err := app.Backup.Backup(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%d bytes) to %s\n", result.RemoteName, result.Size, result.Provider)

	case BackupActionRestore:
		if !cmd.Yes && !confirm("This replaces every local diary entry with the backup. Continue?") {
			return errors.New("restore cancelled")
		}
		result, err := app.Backup.Restore(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d entries (%d bytes) from %s\n", result.Entries, result.Size, result.Provider)

	case BackupActionDelete:
		if !cmd.Yes && !confirm("Delete the remote backup?") {
			return errors.New("delete cancelled")
		}
		if err := app.Backup.DeleteBackup(ctx); err != nil {
			return err
		}
		fmt.Println("Remote backup deleted")

	case BackupActionStatus:
		printBackupStatus(app.Backup.Status(ctx))

	default:
		return fmt.Errorf("unknown backup action %q", cmd.Action)
	}
	return nil
}

func printBackupStatus(status *backup.Status) {
	if status.Provider == "" {
		fmt.Println("Provider:    (none)")
	} else {
		fmt.Printf("Provider:    %s (configured: %t)\n", status.Provider, status.Configured)
	}
	if status.Remote != nil {
		fmt.Printf("Remote:      %s, %d bytes, modified %s\n",
			status.Remote.Name, status.Remote.Size, status.Remote.ModifiedAt.Format("2006-01-02 15:04"))
	}
	if status.Last.LastAt != nil {
		fmt.Printf("Last run:    %s %s %s\n", status.Last.LastAt.Format("2006-01-02 15:04"), status.Last.Status, status.Last.Message)
	}
	if status.Error != "" {
		fmt.Printf("Error:       %s\n", status.Error)
	}
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
