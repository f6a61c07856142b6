package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"helix-navigator/backend/internal/adapter"
	"helix-navigator/backend/internal/eval"
	"helix-navigator/backend/internal/graph"
	"helix-navigator/backend/internal/memory"
	"helix-navigator/backend/internal/workflow"
	"helix-navigator/backend/pkg/config"
	"helix-navigator/backend/pkg/logger"
)

func main() {
	benchmarkPath := flag.String("benchmark", "", "Path to the golden dataset (defaults to BENCHMARK_PATH)")
	reportPath := flag.String("report", "", "Path to write the report (defaults to REPORT_PATH, - for stdout)")
	concurrency := flag.Int("concurrency", 4, "Max conversation chains evaluated at once")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting evaluation run...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *benchmarkPath == "" {
		*benchmarkPath = cfg.BenchmarkPath
	}
	if *reportPath == "" {
		*reportPath = cfg.ReportPath
	}

	// Load the benchmark
	items, err := eval.LoadBenchmark(*benchmarkPath)
	if err != nil {
		log.Fatal("Failed to load benchmark", zap.Error(err))
	}
	log.Info("Benchmark loaded",
		zap.String("path", *benchmarkPath),
		zap.Int("items", len(items)),
	)

	// Connect to Neo4j
	ctx := context.Background()
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	defer driver.Close(context.Background())

	store := graph.NewStore(driver)
	llm := adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.FastModelID, cfg.DeepModelID)

	// Each scenario gets a fresh engine and a fresh memory manager so no
	// conversation history leaks between scenarios
	factory := func(opts workflow.Options) *workflow.Engine {
		engine := workflow.NewEngine(llm, store, memory.NewManager(cfg.MemoryWindow), opts)
		engine.SetStageTimeout(cfg.StageTimeout)
		return engine
	}

	harness := eval.NewHarness(factory, items)
	harness.SetConcurrency(*concurrency)

	results, err := harness.Run(ctx)
	if err != nil {
		log.Fatal("Evaluation failed", zap.Error(err))
	}

	out := os.Stdout
	if *reportPath != "-" {
		f, err := os.Create(*reportPath)
		if err != nil {
			log.Fatal("Failed to create report file", zap.Error(err))
		}
		defer f.Close()
		out = f
	}

	if err := eval.WriteReport(out, results); err != nil {
		log.Fatal("Failed to write report", zap.Error(err))
	}

	log.Info("Evaluation completed",
		zap.Int("scenarios", len(results)),
		zap.String("report", *reportPath),
	)
}
