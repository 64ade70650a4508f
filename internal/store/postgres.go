package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/db"
	"github.com/crestline-networks/circuit-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const enrichedColumns = `site_name, device_serial, network_name,
	wan1_provider, wan1_speed, wan1_circuit_role, wan1_confirmed, wan1_ip, wan1_arin_org,
	wan2_provider, wan2_speed, wan2_circuit_role, wan2_confirmed, wan2_ip, wan2_arin_org,
	pushed_to_meraki, pushed_date, last_updated`

// upsertEnrichedSQL merges a recomputed row into an existing one. Text
// fields keep the existing value when the new value is empty; confirmed
// flags and last_updated always take the new value.
const upsertEnrichedSQL = `INSERT INTO enriched_circuits (` + enrichedColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (site_name) DO UPDATE SET
		device_serial     = CASE WHEN EXCLUDED.device_serial <> '' THEN EXCLUDED.device_serial ELSE enriched_circuits.device_serial END,
		network_name      = CASE WHEN EXCLUDED.network_name <> '' THEN EXCLUDED.network_name ELSE enriched_circuits.network_name END,
		wan1_provider     = CASE WHEN EXCLUDED.wan1_provider <> '' THEN EXCLUDED.wan1_provider ELSE enriched_circuits.wan1_provider END,
		wan1_speed        = CASE WHEN EXCLUDED.wan1_speed <> '' THEN EXCLUDED.wan1_speed ELSE enriched_circuits.wan1_speed END,
		wan1_circuit_role = CASE WHEN EXCLUDED.wan1_circuit_role <> '' THEN EXCLUDED.wan1_circuit_role ELSE enriched_circuits.wan1_circuit_role END,
		wan1_confirmed    = EXCLUDED.wan1_confirmed,
		wan1_ip           = CASE WHEN EXCLUDED.wan1_ip <> '' THEN EXCLUDED.wan1_ip ELSE enriched_circuits.wan1_ip END,
		wan1_arin_org     = CASE WHEN EXCLUDED.wan1_arin_org <> '' THEN EXCLUDED.wan1_arin_org ELSE enriched_circuits.wan1_arin_org END,
		wan2_provider     = CASE WHEN EXCLUDED.wan2_provider <> '' THEN EXCLUDED.wan2_provider ELSE enriched_circuits.wan2_provider END,
		wan2_speed        = CASE WHEN EXCLUDED.wan2_speed <> '' THEN EXCLUDED.wan2_speed ELSE enriched_circuits.wan2_speed END,
		wan2_circuit_role = CASE WHEN EXCLUDED.wan2_circuit_role <> '' THEN EXCLUDED.wan2_circuit_role ELSE enriched_circuits.wan2_circuit_role END,
		wan2_confirmed    = EXCLUDED.wan2_confirmed,
		wan2_ip           = CASE WHEN EXCLUDED.wan2_ip <> '' THEN EXCLUDED.wan2_ip ELSE enriched_circuits.wan2_ip END,
		wan2_arin_org     = CASE WHEN EXCLUDED.wan2_arin_org <> '' THEN EXCLUDED.wan2_arin_org ELSE enriched_circuits.wan2_arin_org END,
		pushed_to_meraki  = EXCLUDED.pushed_to_meraki,
		pushed_date       = COALESCE(EXCLUDED.pushed_date, enriched_circuits.pushed_date),
		last_updated      = EXCLUDED.last_updated`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_enriched":     `SELECT ` + enrichedColumns + ` FROM enriched_circuits WHERE site_name = $1`,
	"upsert_enriched":  upsertEnrichedSQL,
	"put_ip_ownership": `INSERT INTO ip_ownership (ip, organization, via_ddns, resolved_at) VALUES ($1, $2, $3, $4) ON CONFLICT (ip) DO UPDATE SET organization = EXCLUDED.organization, via_ddns = EXCLUDED.via_ddns, resolved_at = EXCLUDED.resolved_at`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migrate(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var orderCircuitColumns = []string{
	"site_name", "provider_name", "speed", "purpose", "status", "start_ip", "monthly_cost", "updated_at",
}

func (s *PostgresStore) UpsertOrderCircuits(ctx context.Context, circuits []model.OrderCircuit) (int64, error) {
	rows := make([][]any, 0, len(circuits))
	for _, c := range circuits {
		updated := c.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		rows = append(rows, []any{
			c.SiteName, c.ProviderName, c.Speed, c.Purpose, c.Status, c.StartIP, c.MonthlyCost, updated,
		})
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "order_circuits",
		Columns:      orderCircuitColumns,
		ConflictKeys: []string{"site_name", "purpose", "provider_name"},
	}, rows)
}

const selectOrderCircuits = `SELECT site_name, provider_name, speed, purpose, status, start_ip, monthly_cost, updated_at FROM order_circuits`

func (s *PostgresStore) ListOrderCircuits(ctx context.Context) ([]model.OrderCircuit, error) {
	rows, err := s.pool.Query(ctx, selectOrderCircuits+` ORDER BY site_name, purpose, provider_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list order circuits")
	}
	defer rows.Close()
	return scanOrderCircuits(rows)
}

func (s *PostgresStore) OrderCircuitsBySite(ctx context.Context, siteName string) ([]model.OrderCircuit, error) {
	rows, err := s.pool.Query(ctx, selectOrderCircuits+` WHERE site_name = $1 ORDER BY purpose, provider_name`, siteName)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: order circuits for %s", siteName)
	}
	defer rows.Close()
	return scanOrderCircuits(rows)
}

func scanOrderCircuits(rows pgx.Rows) ([]model.OrderCircuit, error) {
	var out []model.OrderCircuit
	for rows.Next() {
		var c model.OrderCircuit
		if err := rows.Scan(&c.SiteName, &c.ProviderName, &c.Speed, &c.Purpose, &c.Status, &c.StartIP, &c.MonthlyCost, &c.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order circuit")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetEnriched(ctx context.Context, siteName string) (*model.EnrichedCircuit, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+enrichedColumns+` FROM enriched_circuits WHERE site_name = $1`, siteName)
	e, err := scanEnriched(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get enriched %s", siteName)
	}
	return e, nil
}

func (s *PostgresStore) ListEnriched(ctx context.Context) ([]model.EnrichedCircuit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+enrichedColumns+` FROM enriched_circuits ORDER BY site_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enriched")
	}
	defer rows.Close()

	var out []model.EnrichedCircuit
	for rows.Next() {
		e, err := scanEnriched(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan enriched")
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanEnriched(row pgx.Row) (*model.EnrichedCircuit, error) {
	var e model.EnrichedCircuit
	err := row.Scan(
		&e.SiteName, &e.DeviceSerial, &e.NetworkName,
		&e.WAN1.Provider, &e.WAN1.Speed, &e.WAN1.Role, &e.WAN1.Confirmed, &e.WAN1.IP, &e.WAN1.ArinOrg,
		&e.WAN2.Provider, &e.WAN2.Speed, &e.WAN2.Role, &e.WAN2.Confirmed, &e.WAN2.IP, &e.WAN2.ArinOrg,
		&e.PushedToDevice, &e.PushedDate, &e.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func enrichedArgs(e model.EnrichedCircuit) []any {
	return []any{
		e.SiteName, e.DeviceSerial, e.NetworkName,
		e.WAN1.Provider, e.WAN1.Speed, e.WAN1.Role, e.WAN1.Confirmed, e.WAN1.IP, e.WAN1.ArinOrg,
		e.WAN2.Provider, e.WAN2.Speed, e.WAN2.Role, e.WAN2.Confirmed, e.WAN2.IP, e.WAN2.ArinOrg,
		e.PushedToDevice, e.PushedDate, e.LastUpdated,
	}
}

// UpsertEnrichedBatch merges all rows in one transaction. A failure rolls
// back the whole batch, leaving previously committed batches intact.
func (s *PostgresStore) UpsertEnrichedBatch(ctx context.Context, rows []model.EnrichedCircuit) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin enriched batch")
	}
	defer tx.Rollback(ctx)

	for _, e := range rows {
		if _, err := tx.Exec(ctx, upsertEnrichedSQL, enrichedArgs(e)...); err != nil {
			return eris.Wrapf(err, "postgres: upsert enriched %s", e.SiteName)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit enriched batch")
}

// PruneEnriched removes rows whose backing device is no longer in
// inventory. An empty serial list is a no-op so a failed inventory poll
// cannot wipe the table.
func (s *PostgresStore) PruneEnriched(ctx context.Context, activeSerials []string) (int64, error) {
	if len(activeSerials) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM enriched_circuits WHERE device_serial <> '' AND NOT (device_serial = ANY($1))`,
		activeSerials,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune enriched")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) PutIPOwnership(ctx context.Context, entry model.IpOwnership) error {
	resolved := entry.ResolvedAt
	if resolved.IsZero() {
		resolved = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ip_ownership (ip, organization, via_ddns, resolved_at) VALUES ($1, $2, $3, $4) ON CONFLICT (ip) DO UPDATE SET organization = EXCLUDED.organization, via_ddns = EXCLUDED.via_ddns, resolved_at = EXCLUDED.resolved_at`,
		entry.IP, entry.Organization, entry.ViaDDNS, resolved,
	)
	return eris.Wrapf(err, "postgres: put ip ownership %s", entry.IP)
}

func (s *PostgresStore) ListIPOwnership(ctx context.Context) ([]model.IpOwnership, error) {
	rows, err := s.pool.Query(ctx, `SELECT ip, organization, via_ddns, resolved_at FROM ip_ownership`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ip ownership")
	}
	defer rows.Close()

	var out []model.IpOwnership
	for rows.Next() {
		var e model.IpOwnership
		if err := rows.Scan(&e.IP, &e.Organization, &e.ViaDDNS, &e.ResolvedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ip ownership")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertChangeHistory appends one change record. An existing entry with the
// same (site, date, change type, field) key and identical values makes this
// a no-op; a key collision with differing values is logged as a conflict
// and the new entry is dropped.
func (s *PostgresStore) InsertChangeHistory(ctx context.Context, entry model.ChangeHistoryEntry) error {
	var oldVal, newVal string
	err := s.pool.QueryRow(ctx,
		`SELECT old_value, new_value FROM change_history WHERE site_name = $1 AND change_date = $2 AND change_type = $3 AND field = $4`,
		entry.SiteName, entry.ChangeDate, entry.ChangeType, entry.Field,
	).Scan(&oldVal, &newVal)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		id := entry.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = s.pool.Exec(ctx,
			`INSERT INTO change_history (id, site_name, change_date, change_type, field, old_value, new_value, source_file) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, entry.SiteName, entry.ChangeDate, entry.ChangeType, entry.Field, entry.OldValue, entry.NewValue, entry.SourceFile,
		)
		return eris.Wrapf(err, "postgres: insert change history for %s", entry.SiteName)
	case err != nil:
		return eris.Wrapf(err, "postgres: check change history for %s", entry.SiteName)
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

func (s *PostgresStore) ListChangeHistory(ctx context.Context, siteName string) ([]model.ChangeHistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, site_name, change_date, change_type, field, old_value, new_value, source_file FROM change_history WHERE site_name = $1 ORDER BY change_date DESC`,
		siteName,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list change history for %s", siteName)
	}
	defer rows.Close()

	var out []model.ChangeHistoryEntry
	for rows.Next() {
		var e model.ChangeHistoryEntry
		if err := rows.Scan(&e.ID, &e.SiteName, &e.ChangeDate, &e.ChangeType, &e.Field, &e.OldValue, &e.NewValue, &e.SourceFile); err != nil {
			return nil, eris.Wrap(err, "postgres: scan change history")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Confirm(ctx context.Context, siteName string, wan1, wan2 bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enriched_circuits SET
			wan1_confirmed = CASE WHEN $2 THEN TRUE ELSE wan1_confirmed END,
			wan2_confirmed = CASE WHEN $3 THEN TRUE ELSE wan2_confirmed END,
			last_updated = now()
		WHERE site_name = $1`,
		siteName, wan1, wan2,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: confirm %s", siteName)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkPushed(ctx context.Context, siteName string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enriched_circuits SET pushed_to_meraki = TRUE, pushed_date = $2, last_updated = $2 WHERE site_name = $1`,
		siteName, at,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark pushed %s", siteName)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ResetConfirmation(ctx context.Context, siteName string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enriched_circuits SET wan1_confirmed = FALSE, wan2_confirmed = FALSE, pushed_to_meraki = FALSE, pushed_date = NULL, last_updated = now() WHERE site_name = $1`,
		siteName,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset %s", siteName)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
