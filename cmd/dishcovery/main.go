// Package main is the entry point for the dishcovery client.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
)

const usage = `Usage: dishcovery <command> [flags]

Commands:
  serve          Run the local API for the view layer
  generate       Generate a recipe from --image, --prompt or --image-url
  validate-key   Verify the saved API key with the recipe service
  settings       show | set | reset provider settings
  recipes        list saved recipes (--user)

Run "dishcovery <command> --help" for command flags.
`

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return runServe(ctx, rest, stdout, stderr)
	case "generate":
		return runGenerate(ctx, rest, stdout, stderr)
	case "validate-key":
		return runValidateKey(ctx, rest, stdout, stderr)
	case "settings":
		return runSettings(ctx, rest, stdout, stderr)
	case "recipes":
		return runRecipes(ctx, rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}
}
