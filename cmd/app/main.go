package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"transit-ledger/internal/config"
	ledgerservice "transit-ledger/internal/ledger-service"
	"transit-ledger/internal/ledger-service/core/services"
	"transit-ledger/internal/mylogger"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  app ledger-service [--port N] [--offline]")
	fmt.Fprintln(os.Stderr, "  app hash-password --password SECRET")
}

func main() {
	ledgerCmd := flag.NewFlagSet("ledger-service", flag.ExitOnError)
	port := ledgerCmd.String("port", "", "port (overrides LEDGER_SERVICE_PORT)")
	offline := ledgerCmd.Bool("offline", false, "start with the simulated link down")

	hashCmd := flag.NewFlagSet("hash-password", flag.ExitOnError)
	password := hashCmd.String("password", "", "operator password to hash")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ledger-service":
		ledgerCmd.Parse(os.Args[2:])

		cfg, err := config.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		if *port != "" {
			cfg.Srv.LedgerServicePort = *port
		}
		if *offline {
			cfg.Ledger.StartOffline = true
		}

		mylog := mylogger.New(cfg.Log.Level, "ledger-service")
		mylog.Action("ledger_service_started").Info("Transit ledger starting up")

		if err := ledgerservice.Execute(context.Background(), mylog, cfg); err != nil {
			os.Exit(1)
		}

	case "hash-password":
		hashCmd.Parse(os.Args[2:])
		if *password == "" {
			usage()
			os.Exit(1)
		}
		hash, err := services.HashPassword(*password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)

	default:
		usage()
		os.Exit(1)
	}
}
