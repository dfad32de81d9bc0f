package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"saldo/internal/cli"
	"saldo/internal/config"
	"saldo/internal/log"
)

var verbose = flag.Bool("v", false, "Log backend activity to stderr.")

func main() {
	_ = godotenv.Load()

	flag.Parse()

	cfg := config.Load()
	level := slog.LevelWarn
	if *verbose {
		level = log.ParseLevel(cfg.LogLevel)
	}
	logger := log.New(log.Config{Level: level, Output: os.Stderr, Component: log.ComponentCLI})
	log.SetDefault(logger)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cli.NewApp(cfg, logger, os.Stdout).Register(commander)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitUsageError))
	}
	os.Exit(int(commander.Execute(context.Background())))
}
