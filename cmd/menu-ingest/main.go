// Command menu-ingest imports a hospital menu export into the database. The
// export format is gzipped JSON lines (one menu item per line), as produced
// by the catering system's nightly dump. Files are streamed, not buffered,
// and upserts run in parallel batches.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/carekitchen/mealorder/internal/storage/postgres"
)

const (
	batchSize     = 500
	workers       = 4
	progressEvery = 10_000
)

type menuItemLine struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Allergens []string        `json:"allergens"`
	Available bool            `json:"available"`
}

func main() {
	var (
		exportFile  string
		databaseURL string
	)

	flag.StringVar(&exportFile, "export-file", "data/menu-export.jsonl.gz", "gzipped JSONL menu export")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, exportFile, databaseURL); err != nil {
		slog.Error("menu ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("menu ingest completed successfully")
}

func run(ctx context.Context, exportFile, databaseURL string) error {
	if ext := filepath.Ext(exportFile); ext != ".gz" {
		return errors.Errorf("expected a gzipped export, got %s", ext)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	batches := make(chan []menuItemLine, workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(batches)
		return streamExport(ctx, exportFile, batches)
	})
	for range workers {
		g.Go(func() error {
			return upsertBatches(ctx, pool, batches)
		})
	}

	return g.Wait()
}

// streamExport decompresses the export with pgzip and emits batches of
// parsed lines. Malformed lines are skipped with a warning rather than
// aborting a multi-thousand-item import.
func streamExport(ctx context.Context, path string, batches chan<- []menuItemLine) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open export file")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	var (
		batch []menuItemLine
		count int
	)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item menuItemLine
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			slog.Warn("skipping malformed line", slog.String("error", err.Error()))
			continue
		}
		if item.ID == "" || item.Name == "" {
			slog.Warn("skipping incomplete item", slog.String("line", line))
			continue
		}

		batch = append(batch, item)
		count++
		if count%progressEvery == 0 {
			slog.Info("ingest progress", slog.Int("items", count))
		}

		if len(batch) >= batchSize {
			select {
			case batches <- batch:
				batch = nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan export")
	}

	if len(batch) > 0 {
		select {
		case batches <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	slog.Info("export streamed", slog.Int("items", count))
	return nil
}

func upsertBatches(ctx context.Context, pool *pgxpool.Pool, batches <-chan []menuItemLine) error {
	const upsertSQL = `INSERT INTO menu_items (id, name, price, category, allergens, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			category = EXCLUDED.category, allergens = EXCLUDED.allergens,
			available = EXCLUDED.available`

	for batch := range batches {
		b := &pgx.Batch{}
		for _, item := range batch {
			b.Queue(upsertSQL, item.ID, item.Name, item.Price, item.Category, item.Allergens, item.Available)
		}
		if err := pool.SendBatch(ctx, b).Close(); err != nil {
			return errors.Wrap(err, "send batch")
		}
	}
	return nil
}
