package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"homeledger/internal/cli"
	"homeledger/internal/log"
	"homeledger/internal/services"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.LoadEnvFile()

	// Service logs would clutter command output, so only warnings show by default.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, log.ComponentCLI, os.Stderr)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.DBPath)
	defer repo.Close()

	var publisher services.EventPublisher
	if client := cli.InitAMQP(logger, cfg); client != nil {
		defer client.Close()
		publisher = client
	}

	app, err := cli.NewApp(cfg, repo, publisher, os.Stdout, os.Stderr)
	if err != nil {
		logger.Error("Failed to set up ledger", "error", err)
		return 1
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.Register(commander, app)

	flag.Parse()
	return int(commander.Execute(context.Background()))
}
