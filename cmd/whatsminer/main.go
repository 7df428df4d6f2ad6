// whatsminer is a command-line client for the Whatsminer API v3.0.1.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &App{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		ReadPassword: readTerminalPassword,
	}

	code := app.Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// readTerminalPassword prompts on stderr without echo. It returns an empty
// password when stdin is not a terminal.
func readTerminalPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
