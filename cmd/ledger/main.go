package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"splitledger/internal/cli"
	"splitledger/internal/services"
)

var user = flag.String("user", "", "user the command acts for, defaults to LEDGER_USER")

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	flag.Parse()

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(int(subcommands.ExitFailure))
	}

	env := &cli.Env{
		Open: func(ctx context.Context) (*services.Ledger, error) {
			return cli.Bootstrap(ctx, cfg, logger)
		},
		User: func() string {
			if *user != "" {
				return *user
			}
			return cfg.User
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	cli.Register(commander, env)

	ctx, stop := cli.SignalContext(context.Background())
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
