package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"balance-aggregator/internal/config"
	"balance-aggregator/internal/integration"
	"balance-aggregator/internal/models"
	"balance-aggregator/internal/services"
	"balance-aggregator/pkg/logger"
	"balance-aggregator/pkg/metrics"

	"go.uber.org/zap"
)

type chainOutput struct {
	Balances models.Balances `json:"balances,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type output struct {
	Project string                 `json:"project"`
	Chains  map[string]chainOutput `json:"chains"`
	Stats   map[string]interface{} `json:"stats"`
}

func main() {
	projectPath := flag.String("project", "", "path to the project YAML file")
	chain := flag.String("chain", "", "aggregate only this chain")
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a config file")
	flag.Parse()

	if *projectPath == "" {
		fmt.Fprintln(os.Stderr, "usage: aggregate -project file.yaml [-chain name] [-config file]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the JSON result
	if err := logger.Initialize(&logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.GetLogger()
	defer func() { _ = log.Sync() }()

	project, err := integration.LoadProject(*projectPath)
	if err != nil {
		log.Fatal("Failed to load project", zap.String("path", *projectPath), zap.Error(err))
	}
	if *chain != "" {
		if project, err = project.Only(*chain); err != nil {
			log.Fatal("Failed to select chain", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mc := metrics.NewMetricsCollector(nil)
	svc := services.Build(cfg, mc)

	log.Info("Aggregating project",
		zap.String("project", project.Name),
		zap.Strings("chains", project.ChainNames()),
	)
	result := project.Run(ctx, svc.Engine)

	out := output{
		Project: project.Name,
		Chains:  make(map[string]chainOutput, len(result.Balances)+len(result.Errors)),
		Stats:   mc.Stats(),
	}
	for c, b := range result.Balances {
		out.Chains[c] = chainOutput{Balances: b}
	}
	for c, e := range result.Errors {
		out.Chains[c] = chainOutput{Error: e.Error()}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal("Failed to write result", zap.Error(err))
	}

	if result.Failed() {
		stop()
		os.Exit(1)
	}
}
