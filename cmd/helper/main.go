package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// helper plays one passenger against a running ledger-service: login, top-up,
// trip, then it prints every ledger notification until interrupted.
func main() {
	baseURL := flag.String("base", "http://localhost:3000", "ledger-service base URL")
	name := flag.String("name", "Demo Passenger", "passenger name")
	amount := flag.Int64("amount", 20000, "top-up amount")
	provider := flag.String("provider", "MTN Momo", "top-up provider")
	route := flag.String("route", "Central Loop", "route to ride")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := &Logger{}
	passenger := NewPassengerService(ctx, *baseURL, logger)
	defer passenger.Close()

	if err := passenger.Login(*name); err != nil {
		log.Fatalf("login: %v", err)
	}
	if err := passenger.ConnectWebSocket(*baseURL); err != nil {
		log.Fatalf("websocket: %v", err)
	}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- passenger.Listen()
	}()

	if err := passenger.TopUp(*amount, *provider); err != nil {
		logger.Error("top-up: %v", err)
	}
	if err := passenger.Quote(*route); err != nil {
		logger.Error("quote: %v", err)
	}
	if err := passenger.PlaceTrip(*route); err != nil {
		logger.Error("place trip: %v", err)
	}
	if err := passenger.PrintWallet(); err != nil {
		logger.Error("wallet: %v", err)
	}

	logger.Info("waiting for ledger notifications, Ctrl+C to stop")
	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			logger.Error("websocket closed: %v", err)
		}
	}
}
