package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	input := flag.String("input", "-", "JSONL document file, - for stdin")
	flushInterval := flag.Duration("flush-interval", 0, "write a database file this often while reading; 0 writes once at the end")
	keep := flag.Int("keep", 0, "database files to keep after writing; 0 keeps all")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *input, *flushInterval, *keep); err != nil {
		slog.Error("indexer failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, input string, flushInterval time.Duration, keep int) error {
	log := logger.WithComponent("indexer-cli")
	compression, err := segment.ParseCompression(cfg.Database.Compression)
	if err != nil {
		return err
	}
	engine, err := indexer.NewEngine(indexer.Config{DataDir: cfg.Database.Path, Compression: compression})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
	}
	announce := func(path string) {
		if keep > 0 {
			if _, err := engine.Prune(keep); err != nil {
				log.Warn("pruning old databases failed", "error", err)
			}
		}
		if producer == nil {
			return
		}
		db, err := search.Open(path)
		if err != nil {
			log.Error("written database does not open", "path", path, "error", err)
			return
		}
		msg := proto.IndexComplete{
			Path:      path,
			Documents: db.DocCount(),
			Terms:     db.Terms(),
			LastDocID: db.LastDocID(),
			CreatedAt: time.Now().UTC(),
		}
		db.Close()
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := producer.Publish(pubCtx, kafka.Event{Key: msg.Key(), Value: msg}); err != nil {
			log.Error("announcing database failed", "path", path, "error", err)
			return
		}
		log.Info("database announced", "path", path, "topic", producer.Topic())
	}

	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var loopDone <-chan struct{}
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	if flushInterval > 0 {
		loopDone = engine.StartFlushLoop(loopCtx, flushInterval, announce)
	}

	start := time.Now()
	n, err := indexer.ReadJSONL(ctx, r, func(in index.Input) error {
		_, err := engine.IndexDocument(in)
		return err
	})
	if err != nil {
		return err
	}
	log.Info("input indexed", "documents", n, "duration_ms", time.Since(start).Milliseconds())

	if loopDone != nil {
		stopLoop()
		<-loopDone
		return nil
	}
	path, err := engine.Flush()
	if err != nil {
		return err
	}
	announce(path)
	return nil
}
