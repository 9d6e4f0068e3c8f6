package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"http-trace/internal/canon"
	"http-trace/internal/config"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := canon.Run(ctx, cfg, flag.Args())
	if err != nil {
		log.Fatalf("exited with error: %v", err)
	}
	log.Printf("[tracefmt] wrote %d record(s) from %d input(s), skipped %d", stats.Written, stats.Inputs, stats.Skipped)
}
