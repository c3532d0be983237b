// rekey re-encrypts a wallet file under a new password, or encrypts a
// plaintext wallet for the first time. The daemon must not be running while
// this tool rewrites the file.
// Usage: go run ./cmd/rekey <wallet-file>
package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/hashezusa/aleo-GUI-wallet/internal/vault"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: rekey <wallet-file>")
		os.Exit(1)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	store := vault.NewStore(path, vault.DefaultIterations)

	data, encrypted, err := store.Load()
	if err != nil {
		return err
	}
	if encrypted {
		current, err := prompt("Current password: ")
		if err != nil {
			return err
		}
		data, err = store.Unlock(current)
		clear(current)
		if err != nil {
			return err
		}
	}

	next, err := prompt("New password (empty for plaintext): ")
	if err != nil {
		return err
	}
	if len(next) == 0 {
		store.DisableEncryption()
	} else {
		confirm, err := prompt("Repeat new password: ")
		if err != nil {
			return err
		}
		if string(next) != string(confirm) {
			return fmt.Errorf("passwords do not match")
		}
		clear(confirm)
		store.EnableEncryption(next)
		clear(next)
	}

	if err := store.Persist(data); err != nil {
		return err
	}

	fmt.Printf("rewrote %s (%d accounts)\n", path, len(data.Accounts))
	return nil
}

func prompt(label string) ([]byte, error) {
	fmt.Fprint(os.Stderr, label)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return raw, nil
}
