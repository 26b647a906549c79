package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mrlokans/voicediary/internal/crypto"
)

// GenKeyCommand prints or writes a new token encryption key.
type GenKeyCommand struct {
	Output string
	Force  bool
}

// NewGenKeyCommand creates a new GenKeyCommand
func NewGenKeyCommand() *GenKeyCommand {
	return &GenKeyCommand{}
}

// ParseFlags parses command line flags
func (cmd *GenKeyCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("gen-key", flag.ExitOnError)
	fs.StringVar(&cmd.Output, "o", "", "Write the key to this file (mode 0600) instead of stdout")
	fs.BoolVar(&cmd.Force, "force", false, "Overwrite an existing key file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s gen-key [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate a base64 AES-256 key for TOKEN_ENCRYPTION_KEY.\n")
		fmt.Fprintf(os.Stderr, "Replacing the key makes stored API keys and OAuth tokens unreadable.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the gen-key command
func (cmd *GenKeyCommand) Run() error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}

	if cmd.Output == "" {
		fmt.Println(key)
		return nil
	}

	if _, err := os.Stat(cmd.Output); err == nil && !cmd.Force {
		return fmt.Errorf("%s already exists (use -force to replace it)", cmd.Output)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cmd.Output), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(cmd.Output, []byte(key), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	fmt.Printf("Key written to %s\n", cmd.Output)
	return nil
}
