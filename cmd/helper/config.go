package main

import "time"

// ANSI color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

const (
	HTTPRequestDelay = 200 * time.Millisecond
	AuthDelay        = 100 * time.Millisecond
)

// API paths
const (
	PassengerLoginPath = "/auth/passengers"
	TopUpPath          = "/passengers/%s/topups"
	PassengerPath      = "/passengers/%s"
	TripsPath          = "/trips"
	FaresPath          = "/fares?route=%s"
	WSPassengerPath    = "/ws/passengers/%s"
)
