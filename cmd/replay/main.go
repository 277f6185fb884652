package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tradeking/tradeking-api/internal/account"
)

// init configures the logger for the replay with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// main replays recorded decision texts against a fresh account and prints
// what the ledger would look like afterwards
func main() {
	decisionsPath := flag.String("decisions", "", "file with one decision per line (JSON string or {\"decision\": ...})")
	pricesPath := flag.String("prices", "", "JSON object mapping symbols to prices")
	cash := flag.Float64("cash", account.DefaultInitialCash, "starting cash balance")
	accountPath := flag.String("account", "", "write the resulting account to this file")
	flag.Parse()

	if *decisionsPath == "" || *pricesPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	pricesFile, err := os.Open(*pricesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open prices")
	}
	prices, err := loadPrices(pricesFile)
	pricesFile.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load prices")
	}

	decisions, err := os.Open(*decisionsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open decisions")
	}
	defer decisions.Close()

	acct := account.New(*cash)
	start := time.Now()
	stats, err := replay(decisions, acct, prices)
	if err != nil {
		log.Fatal().Err(err).Msg("Replay failed")
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Replay finished")

	printSummary(os.Stdout, stats, acct.CalculateAssets(prices))

	if *accountPath != "" {
		if err := acct.Save(*accountPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to save account")
		}
		log.Info().Str("path", *accountPath).Msg("Account saved")
	}
}
