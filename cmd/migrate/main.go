// Package main runs schema migrations.
//
//	migrate [--config path] up|down|status|version|redo|up-to N|down-to N
package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"sitetrack/internal/config"
	"sitetrack/internal/infrastructure/storage/postgres"
	"sitetrack/pkg/logger"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [--config path] up|down|status|version|redo|up-to N|down-to N\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, command string, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}
	logger.SetDefault(log.WithComponent("migrate"))

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.DSN))
	if err != nil {
		return err
	}
	defer pool.Close()

	return postgres.Migrate(ctx, pool, command, args...)
}
