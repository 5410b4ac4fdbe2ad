package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"phishguard/db"
	"phishguard/logging"
	"phishguard/ml"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("train_model", flag.ContinueOnError)
	flags.SetOutput(stderr)
	dataPath := flags.String("data", ml.DefaultDataPath, "labeled CSV with url,label columns")
	outPath := flags.String("out", ml.DefaultModelPath, "model output path")
	createIfMissing := flags.Bool("create-if-missing", false, "create the data file from the bundled sample when missing")
	modelType := flags.String("model", ml.ModelTypeRandomForest, "classifier: random_forest or decision_tree")
	trees := flags.Int("trees", ml.DefaultTrees, "number of trees in the forest")
	maxDepth := flags.Int("max-depth", 0, "max tree depth, 0 grows until leaves are pure")
	seed := flags.Int64("seed", ml.DefaultSeed, "random seed for the split and the forest")
	dbPath := flags.String("db", "", "sqlite database for the training log, empty disables")
	logLevel := flags.String("log-level", "info", "log level")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger, err := logging.New(logging.Config{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config := ml.TrainConfig{
		DataPath:        *dataPath,
		OutputPath:      *outPath,
		CreateIfMissing: *createIfMissing,
		ModelType:       *modelType,
		Seed:            seed,
		Trees:           *trees,
		MaxDepth:        *maxDepth,
		Logger:          logger,
		Report:          stdout,
	}

	if *dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		store, err := db.Open(db.DriverSQLite, *dbPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		defer store.Close()
		config.Recorder = store
	}

	result, err := ml.Train(ctx, config)
	if err != nil {
		if ml.IsInputError(err) {
			logger.Error("invalid training data", zap.Error(err))
		} else {
			logger.Error("training failed", zap.Error(err))
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "model saved to %s (%d train rows, %d test rows)\n", *outPath, result.TrainRows, result.TestRows)
	return 0
}
