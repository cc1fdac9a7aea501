// Command seed-db loads the menu from a JSON file and provisions API keys
// for a staff member and a patient, for local development and integration
// tests.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carekitchen/mealorder/internal/storage/postgres"
)

type menuItemJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Allergens []string        `json:"allergens"`
	Available *bool           `json:"available"`
}

func main() {
	var (
		databaseURL string
		menuFile    string
		staffKey    string
		patientKey  string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
	flag.StringVar(&staffKey, "staff-key", "", "staff API key to seed (or MEAL_SEED_STAFF_KEY env)")
	flag.StringVar(&patientKey, "patient-key", "", "patient API key to seed (or MEAL_SEED_PATIENT_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or MEAL_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if staffKey == "" {
		staffKey = os.Getenv("MEAL_SEED_STAFF_KEY")
	}
	if patientKey == "" {
		patientKey = os.Getenv("MEAL_SEED_PATIENT_KEY")
	}
	if pepper == "" {
		pepper = os.Getenv("MEAL_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, menuFile, staffKey, patientKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, menuFile, staffKey, patientKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMenu(ctx, pool, menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	if staffKey != "" {
		if err := seedIdentity(ctx, pool, "staff-1", "Kitchen Staff", "staff", "", "", staffKey, pepper); err != nil {
			return errors.Wrap(err, "seed staff identity")
		}
	}
	if patientKey != "" {
		if err := seedIdentity(ctx, pool, "patient-1", "Test Patient", "patient", "W3", "12", patientKey, pepper); err != nil {
			return errors.Wrap(err, "seed patient identity")
		}
	}

	return nil
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool, menuFile string) error {
	slog.Info("reading menu file", slog.String("path", menuFile))

	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}

	var items []menuItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	const upsertSQL = `INSERT INTO menu_items (id, name, price, category, allergens, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price,
			category = EXCLUDED.category, allergens = EXCLUDED.allergens,
			available = EXCLUDED.available`

	for _, item := range items {
		available := true
		if item.Available != nil {
			available = *item.Available
		}
		if _, err := pool.Exec(ctx, upsertSQL,
			item.ID, item.Name, item.Price, item.Category, item.Allergens, available,
		); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", item.ID)
		}
	}

	slog.Info("menu seeded", slog.Int("items", len(items)))
	return nil
}

func seedIdentity(ctx context.Context, pool *pgxpool.Pool, id, name, role, ward, bed, apiKey, pepper string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	hash := hex.EncodeToString(mac.Sum(nil))

	const upsertSQL = `INSERT INTO identities (id, name, key_hash, role, ward, bed, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, key_hash = EXCLUDED.key_hash, role = EXCLUDED.role,
			ward = EXCLUDED.ward, bed = EXCLUDED.bed, active = TRUE`

	if _, err := pool.Exec(ctx, upsertSQL, id, name, hash, role, ward, bed); err != nil {
		return errors.Wrapf(err, "upsert identity %s", id)
	}

	slog.Info("identity seeded", slog.String("id", id), slog.String("role", role))
	return nil
}
