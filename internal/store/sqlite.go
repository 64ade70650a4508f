package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is intended for
// local development and single-operator use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS order_circuits (
	site_name     TEXT NOT NULL,
	provider_name TEXT NOT NULL,
	speed         TEXT NOT NULL DEFAULT '',
	purpose       TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL DEFAULT '',
	start_ip      TEXT NOT NULL DEFAULT '',
	monthly_cost  REAL NOT NULL DEFAULT 0,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (site_name, purpose, provider_name)
);

CREATE INDEX IF NOT EXISTS idx_order_circuits_start_ip ON order_circuits(start_ip);

CREATE TABLE IF NOT EXISTS enriched_circuits (
	site_name         TEXT PRIMARY KEY,
	device_serial     TEXT NOT NULL DEFAULT '',
	network_name      TEXT NOT NULL DEFAULT '',
	wan1_provider     TEXT NOT NULL DEFAULT '',
	wan1_speed        TEXT NOT NULL DEFAULT '',
	wan1_circuit_role TEXT NOT NULL DEFAULT '',
	wan1_confirmed    INTEGER NOT NULL DEFAULT 0,
	wan1_ip           TEXT NOT NULL DEFAULT '',
	wan1_arin_org     TEXT NOT NULL DEFAULT '',
	wan2_provider     TEXT NOT NULL DEFAULT '',
	wan2_speed        TEXT NOT NULL DEFAULT '',
	wan2_circuit_role TEXT NOT NULL DEFAULT '',
	wan2_confirmed    INTEGER NOT NULL DEFAULT 0,
	wan2_ip           TEXT NOT NULL DEFAULT '',
	wan2_arin_org     TEXT NOT NULL DEFAULT '',
	pushed_to_meraki  INTEGER NOT NULL DEFAULT 0,
	pushed_date       DATETIME,
	last_updated      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_enriched_circuits_serial ON enriched_circuits(device_serial);

CREATE TABLE IF NOT EXISTS ip_ownership (
	ip           TEXT PRIMARY KEY,
	organization TEXT NOT NULL DEFAULT '',
	via_ddns     INTEGER NOT NULL DEFAULT 0,
	resolved_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS change_history (
	id          TEXT PRIMARY KEY,
	site_name   TEXT NOT NULL,
	change_date DATE NOT NULL,
	change_type TEXT NOT NULL,
	field       TEXT NOT NULL,
	old_value   TEXT NOT NULL DEFAULT '',
	new_value   TEXT NOT NULL DEFAULT '',
	source_file TEXT NOT NULL DEFAULT '',
	UNIQUE (site_name, change_date, change_type, field)
);

CREATE INDEX IF NOT EXISTS idx_change_history_site ON change_history(site_name);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertOrderCircuits(ctx context.Context, circuits []model.OrderCircuit) (int64, error) {
	if len(circuits) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin order upsert")
	}
	defer tx.Rollback()

	var n int64
	for _, c := range circuits {
		updated := c.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO order_circuits (site_name, provider_name, speed, purpose, status, start_ip, monthly_cost, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (site_name, purpose, provider_name) DO UPDATE SET
				speed = excluded.speed, status = excluded.status, start_ip = excluded.start_ip,
				monthly_cost = excluded.monthly_cost, updated_at = excluded.updated_at`,
			c.SiteName, c.ProviderName, c.Speed, c.Purpose, c.Status, c.StartIP, c.MonthlyCost, updated,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert order circuit %s/%s", c.SiteName, c.ProviderName)
		}
		if rows, err := res.RowsAffected(); err == nil {
			n += rows
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit order upsert")
	}
	return n, nil
}

const sqliteSelectOrderCircuits = `SELECT site_name, provider_name, speed, purpose, status, start_ip, monthly_cost, updated_at FROM order_circuits`

func (s *SQLiteStore) ListOrderCircuits(ctx context.Context) ([]model.OrderCircuit, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectOrderCircuits+` ORDER BY site_name, purpose, provider_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list order circuits")
	}
	defer rows.Close()
	return scanSQLiteOrderCircuits(rows)
}

func (s *SQLiteStore) OrderCircuitsBySite(ctx context.Context, siteName string) ([]model.OrderCircuit, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectOrderCircuits+` WHERE site_name = ? ORDER BY purpose, provider_name`, siteName)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: order circuits for %s", siteName)
	}
	defer rows.Close()
	return scanSQLiteOrderCircuits(rows)
}

func scanSQLiteOrderCircuits(rows *sql.Rows) ([]model.OrderCircuit, error) {
	var out []model.OrderCircuit
	for rows.Next() {
		var c model.OrderCircuit
		if err := rows.Scan(&c.SiteName, &c.ProviderName, &c.Speed, &c.Purpose, &c.Status, &c.StartIP, &c.MonthlyCost, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order circuit")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const sqliteUpsertEnriched = `INSERT INTO enriched_circuits (` + enrichedColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (site_name) DO UPDATE SET
		device_serial     = CASE WHEN excluded.device_serial <> '' THEN excluded.device_serial ELSE device_serial END,
		network_name      = CASE WHEN excluded.network_name <> '' THEN excluded.network_name ELSE network_name END,
		wan1_provider     = CASE WHEN excluded.wan1_provider <> '' THEN excluded.wan1_provider ELSE wan1_provider END,
		wan1_speed        = CASE WHEN excluded.wan1_speed <> '' THEN excluded.wan1_speed ELSE wan1_speed END,
		wan1_circuit_role = CASE WHEN excluded.wan1_circuit_role <> '' THEN excluded.wan1_circuit_role ELSE wan1_circuit_role END,
		wan1_confirmed    = excluded.wan1_confirmed,
		wan1_ip           = CASE WHEN excluded.wan1_ip <> '' THEN excluded.wan1_ip ELSE wan1_ip END,
		wan1_arin_org     = CASE WHEN excluded.wan1_arin_org <> '' THEN excluded.wan1_arin_org ELSE wan1_arin_org END,
		wan2_provider     = CASE WHEN excluded.wan2_provider <> '' THEN excluded.wan2_provider ELSE wan2_provider END,
		wan2_speed        = CASE WHEN excluded.wan2_speed <> '' THEN excluded.wan2_speed ELSE wan2_speed END,
		wan2_circuit_role = CASE WHEN excluded.wan2_circuit_role <> '' THEN excluded.wan2_circuit_role ELSE wan2_circuit_role END,
		wan2_confirmed    = excluded.wan2_confirmed,
		wan2_ip           = CASE WHEN excluded.wan2_ip <> '' THEN excluded.wan2_ip ELSE wan2_ip END,
		wan2_arin_org     = CASE WHEN excluded.wan2_arin_org <> '' THEN excluded.wan2_arin_org ELSE wan2_arin_org END,
		pushed_to_meraki  = excluded.pushed_to_meraki,
		pushed_date       = COALESCE(excluded.pushed_date, pushed_date),
		last_updated      = excluded.last_updated`

func (s *SQLiteStore) UpsertEnrichedBatch(ctx context.Context, rows []model.EnrichedCircuit) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin enriched batch")
	}
	defer tx.Rollback()

	for _, e := range rows {
		if _, err := tx.ExecContext(ctx, sqliteUpsertEnriched, enrichedArgs(e)...); err != nil {
			return eris.Wrapf(err, "sqlite: upsert enriched %s", e.SiteName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit enriched batch")
}

func (s *SQLiteStore) GetEnriched(ctx context.Context, siteName string) (*model.EnrichedCircuit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrichedColumns+` FROM enriched_circuits WHERE site_name = ?`, siteName)
	e, err := scanSQLiteEnriched(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get enriched %s", siteName)
	}
	return e, nil
}

func (s *SQLiteStore) ListEnriched(ctx context.Context) ([]model.EnrichedCircuit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrichedColumns+` FROM enriched_circuits ORDER BY site_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enriched")
	}
	defer rows.Close()

	var out []model.EnrichedCircuit
	for rows.Next() {
		e, err := scanSQLiteEnriched(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enriched")
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanSQLiteEnriched(scan func(dest ...any) error) (*model.EnrichedCircuit, error) {
	var e model.EnrichedCircuit
	var pushed sql.NullTime
	err := scan(
		&e.SiteName, &e.DeviceSerial, &e.NetworkName,
		&e.WAN1.Provider, &e.WAN1.Speed, &e.WAN1.Role, &e.WAN1.Confirmed, &e.WAN1.IP, &e.WAN1.ArinOrg,
		&e.WAN2.Provider, &e.WAN2.Speed, &e.WAN2.Role, &e.WAN2.Confirmed, &e.WAN2.IP, &e.WAN2.ArinOrg,
		&e.PushedToDevice, &pushed, &e.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	if pushed.Valid {
		t := pushed.Time
		e.PushedDate = &t
	}
	return &e, nil
}

func (s *SQLiteStore) PruneEnriched(ctx context.Context, activeSerials []string) (int64, error) {
	if len(activeSerials) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(activeSerials)), ", ")
	args := make([]any, len(activeSerials))
	for i, serial := range activeSerials {
		args[i] = serial
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enriched_circuits WHERE device_serial <> '' AND device_serial NOT IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune enriched")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) PutIPOwnership(ctx context.Context, entry model.IpOwnership) error {
	resolved := entry.ResolvedAt
	if resolved.IsZero() {
		resolved = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ip_ownership (ip, organization, via_ddns, resolved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (ip) DO UPDATE SET organization = excluded.organization, via_ddns = excluded.via_ddns, resolved_at = excluded.resolved_at`,
		entry.IP, entry.Organization, entry.ViaDDNS, resolved,
	)
	return eris.Wrapf(err, "sqlite: put ip ownership %s", entry.IP)
}

func (s *SQLiteStore) ListIPOwnership(ctx context.Context) ([]model.IpOwnership, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ip, organization, via_ddns, resolved_at FROM ip_ownership`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ip ownership")
	}
	defer rows.Close()

	var out []model.IpOwnership
	for rows.Next() {
		var e model.IpOwnership
		if err := rows.Scan(&e.IP, &e.Organization, &e.ViaDDNS, &e.ResolvedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ip ownership")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertChangeHistory(ctx context.Context, entry model.ChangeHistoryEntry) error {
	var oldVal, newVal string
	err := s.db.QueryRowContext(ctx,
		`SELECT old_value, new_value FROM change_history WHERE site_name = ? AND change_date = ? AND change_type = ? AND field = ?`,
		entry.SiteName, entry.ChangeDate, entry.ChangeType, entry.Field,
	).Scan(&oldVal, &newVal)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := entry.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO change_history (id, site_name, change_date, change_type, field, old_value, new_value, source_file) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, entry.SiteName, entry.ChangeDate, entry.ChangeType, entry.Field, entry.OldValue, entry.NewValue, entry.SourceFile,
		)
		return eris.Wrapf(err, "sqlite: insert change history for %s", entry.SiteName)
	case err != nil:
		return eris.Wrapf(err, "sqlite: check change history for %s", entry.SiteName)
	}

	if oldVal == entry.OldValue && newVal == entry.NewValue {
		return nil
	}
	zap.L().Warn("store: change history key conflict, dropping new entry",
		zap.String("site", entry.SiteName),
		zap.String("change_type", entry.ChangeType),
		zap.String("field", entry.Field),
		zap.String("existing_new_value", newVal),
		zap.String("dropped_new_value", entry.NewValue),
	)
	return nil
}

func (s *SQLiteStore) ListChangeHistory(ctx context.Context, siteName string) ([]model.ChangeHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, site_name, change_date, change_type, field, old_value, new_value, source_file FROM change_history WHERE site_name = ? ORDER BY change_date DESC`,
		siteName,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list change history for %s", siteName)
	}
	defer rows.Close()

	var out []model.ChangeHistoryEntry
	for rows.Next() {
		var e model.ChangeHistoryEntry
		if err := rows.Scan(&e.ID, &e.SiteName, &e.ChangeDate, &e.ChangeType, &e.Field, &e.OldValue, &e.NewValue, &e.SourceFile); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan change history")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Confirm(ctx context.Context, siteName string, wan1, wan2 bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enriched_circuits SET
			wan1_confirmed = CASE WHEN ? THEN 1 ELSE wan1_confirmed END,
			wan2_confirmed = CASE WHEN ? THEN 1 ELSE wan2_confirmed END,
			last_updated = ?
		WHERE site_name = ?`,
		wan1, wan2, time.Now().UTC(), siteName,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: confirm %s", siteName)
	}
	return checkRowsAffected(res, siteName)
}

func (s *SQLiteStore) MarkPushed(ctx context.Context, siteName string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enriched_circuits SET pushed_to_meraki = 1, pushed_date = ?, last_updated = ? WHERE site_name = ?`,
		at, at, siteName,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark pushed %s", siteName)
	}
	return checkRowsAffected(res, siteName)
}

func (s *SQLiteStore) ResetConfirmation(ctx context.Context, siteName string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enriched_circuits SET wan1_confirmed = 0, wan2_confirmed = 0, pushed_to_meraki = 0, pushed_date = NULL, last_updated = ? WHERE site_name = ?`,
		time.Now().UTC(), siteName,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset %s", siteName)
	}
	return checkRowsAffected(res, siteName)
}

func checkRowsAffected(res sql.Result, siteName string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s", siteName)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
