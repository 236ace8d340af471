package facts

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// Supported SQL drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type factRow struct {
	PlantName           string         `db:"plant_name"`
	BotanicalName       sql.NullString `db:"botanical_name"`
	ChemicalComponents  sql.NullString `db:"chemical_components"`
	MedicinalProperties sql.NullString `db:"medicinal_properties"`
	MedicalUses         sql.NullString `db:"medical_uses"`
}

func (r factRow) record() *Record {
	return &Record{
		PlantName:           r.PlantName,
		BotanicalName:       r.BotanicalName.String,
		ChemicalComponents:  r.ChemicalComponents.String,
		MedicinalProperties: r.MedicinalProperties.String,
		MedicalUses:         r.MedicalUses.String,
	}
}

// SQLStore keeps records in a plant_facts table on PostgreSQL or SQLite.
type SQLStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewSQLStore connects, applies migrations and returns the store.
func NewSQLStore(driver, dsn string, logger *zap.Logger) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	if err := MigrateDB(driver, dsn, logger); err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	logger.Info("Fact store connected", zap.String("driver", driver))
	return &SQLStore{db: db, logger: logger}, nil
}

// MigrateDB brings the schema up to date on its own connection.
func MigrateDB(driver, dsn string, logger *zap.Logger) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migration: %w", err)
	}

	var instance database.Driver
	switch driver {
	case DriverPostgres:
		instance, err = postgres.WithInstance(db, &postgres.Config{})
	case DriverSQLite:
		instance, err = sqlite.WithInstance(db, &sqlite.Config{})
	default:
		err = fmt.Errorf("unsupported sql driver %q", driver)
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("couldn't get database instance for migrations: %w", err)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		instance.Close()
		return fmt.Errorf("couldn't read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		instance.Close()
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Info("Fact store migration was run successfully", zap.String("driver", driver))
	return nil
}

func (s *SQLStore) FindByName(ctx context.Context, name string) (*Record, error) {
	var row factRow
	query := `SELECT plant_name, botanical_name, chemical_components, medicinal_properties, medical_uses
		FROM plant_facts WHERE plant_name = ?`
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.record(), nil
}

func (s *SQLStore) Upsert(ctx context.Context, rec Record) error {
	query := `INSERT INTO plant_facts
		(plant_name, botanical_name, chemical_components, medicinal_properties, medical_uses)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (plant_name) DO UPDATE SET
			botanical_name = excluded.botanical_name,
			chemical_components = excluded.chemical_components,
			medicinal_properties = excluded.medicinal_properties,
			medical_uses = excluded.medical_uses`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		rec.PlantName,
		nullable(rec.BotanicalName),
		nullable(rec.ChemicalComponents),
		nullable(rec.MedicinalProperties),
		nullable(rec.MedicalUses),
	)
	return err
}

func (s *SQLStore) Close() error { return s.db.Close() }

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
