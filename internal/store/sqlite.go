// Package store persists narrative chains in sqlite. The domain type stays
// fully structured; this boundary flattens trigger/impact/resolution into
// columns and JSON TEXT blobs and rehydrates time-relative fields against
// the clock at read time.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mrsingh86/chronicled/internal/chain"
)

const schema = `
CREATE TABLE IF NOT EXISTS narrative_chains (
	id TEXT PRIMARY KEY,
	shipment_id TEXT NOT NULL,
	chain_type TEXT NOT NULL,
	chain_status TEXT NOT NULL DEFAULT 'active',
	trigger_event_id TEXT NOT NULL,
	trigger_event_type TEXT DEFAULT '',
	trigger_summary TEXT DEFAULT '',
	trigger_occurred_at DATETIME,
	trigger_party TEXT DEFAULT '',
	events TEXT NOT NULL DEFAULT '[]',
	current_state TEXT DEFAULT '',
	current_state_party TEXT DEFAULT '',
	current_state_since DATETIME,
	headline TEXT DEFAULT '',
	summary TEXT DEFAULT '',
	narrative TEXT DEFAULT '',
	delay_days INTEGER,
	financial_usd REAL,
	affected_parties TEXT NOT NULL DEFAULT '[]',
	resolution_required BOOLEAN NOT NULL DEFAULT 0,
	resolution_deadline DATETIME,
	resolved_at DATETIME,
	resolved_by TEXT DEFAULT '',
	resolution_summary TEXT DEFAULT '',
	auto_detected BOOLEAN NOT NULL DEFAULT 1,
	confidence INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_chains_live_key
	ON narrative_chains(shipment_id, chain_type, trigger_event_id)
	WHERE chain_status != 'superseded';
CREATE INDEX IF NOT EXISTS idx_chains_shipment ON narrative_chains(shipment_id);
CREATE INDEX IF NOT EXISTS idx_chains_status ON narrative_chains(chain_status, updated_at);
`

const chainColumns = `
	id, shipment_id, chain_type, chain_status,
	trigger_event_id, trigger_event_type, trigger_summary, trigger_occurred_at, trigger_party,
	events, current_state, current_state_party, current_state_since,
	headline, summary, narrative,
	delay_days, financial_usd, affected_parties,
	resolution_required, resolution_deadline, resolved_at, resolved_by, resolution_summary,
	auto_detected, confidence, created_at, updated_at`

// Open opens the chronicled database with the usual pragmas.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", dbPath, err)
	}
	return db, nil
}

// ChainRepository implements chain.Repository over sqlite.
type ChainRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewChainRepository applies the chain schema and returns a repository.
func NewChainRepository(db *sql.DB) (*ChainRepository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply chain schema: %w", err)
	}
	return &ChainRepository{db: db, now: time.Now}, nil
}

// Upsert writes the chain keyed by its live (shipment, type, trigger)
// tuple. The insert-or-update is a single statement against the partial
// unique index, so overlapping passes cannot double-insert. On update the
// row keeps its id, created_at, and, when the current state is unchanged,
// the time that state was entered. A row already moved past active (swept
// stale, or resolved manually) keeps its status; only the refresh pass
// retires such rows. The chain's ID, Status, and CreatedAt are set from
// the persisted row.
func (r *ChainRepository) Upsert(ctx context.Context, c *chain.Chain) error {
	now := r.now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	eventsJSON, err := json.Marshal(c.Events)
	if err != nil {
		return fmt.Errorf("marshal chain events: %w", err)
	}
	partiesJSON, err := json.Marshal(c.Impact.AffectedParties)
	if err != nil {
		return fmt.Errorf("marshal affected parties: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO narrative_chains (
			id, shipment_id, chain_type, chain_status,
			trigger_event_id, trigger_event_type, trigger_summary, trigger_occurred_at, trigger_party,
			events, current_state, current_state_party, current_state_since,
			headline, summary, narrative,
			delay_days, financial_usd, affected_parties,
			resolution_required, resolution_deadline, resolved_at, resolved_by, resolution_summary,
			auto_detected, confidence, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shipment_id, chain_type, trigger_event_id) WHERE chain_status != 'superseded'
		DO UPDATE SET
			chain_status = CASE
				WHEN narrative_chains.chain_status != 'active'
				THEN narrative_chains.chain_status
				ELSE excluded.chain_status
			END,
			trigger_event_type = excluded.trigger_event_type,
			trigger_summary = excluded.trigger_summary,
			trigger_occurred_at = excluded.trigger_occurred_at,
			trigger_party = excluded.trigger_party,
			events = excluded.events,
			current_state_since = CASE
				WHEN narrative_chains.current_state = excluded.current_state
				THEN narrative_chains.current_state_since
				ELSE excluded.current_state_since
			END,
			current_state = excluded.current_state,
			current_state_party = excluded.current_state_party,
			headline = excluded.headline,
			summary = excluded.summary,
			narrative = excluded.narrative,
			delay_days = excluded.delay_days,
			financial_usd = excluded.financial_usd,
			affected_parties = excluded.affected_parties,
			resolution_required = excluded.resolution_required,
			resolution_deadline = excluded.resolution_deadline,
			resolved_at = excluded.resolved_at,
			resolved_by = excluded.resolved_by,
			resolution_summary = excluded.resolution_summary,
			auto_detected = excluded.auto_detected,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		c.ID, c.ShipmentID, string(c.Type), string(c.Status),
		c.Trigger.EventID, c.Trigger.EventType, c.Trigger.Summary, c.Trigger.OccurredAt, c.Trigger.Party,
		string(eventsJSON), c.CurrentState, c.CurrentStateParty, now,
		c.Headline, c.Summary, c.Full,
		nullInt(c.Impact.DelayDays), nullFloat(c.Impact.FinancialUSD), string(partiesJSON),
		c.Resolution.Required, nullTime(c.Resolution.Deadline), nullTime(c.Resolution.ResolvedAt),
		c.Resolution.ResolvedBy, c.Resolution.Summary,
		c.AutoDetected, c.Confidence, now, now)
	if err != nil {
		return fmt.Errorf("upsert chain %s: %w", c.Key(), err)
	}

	// Refill identity and status from the persisted row so re-detection
	// returns the same chain id across passes and never reports a status the
	// guard above rejected.
	var status string
	row := r.db.QueryRowContext(ctx, `
		SELECT id, chain_status, created_at, updated_at FROM narrative_chains
		WHERE shipment_id = ? AND chain_type = ? AND trigger_event_id = ? AND chain_status != 'superseded'`,
		c.ShipmentID, string(c.Type), c.Trigger.EventID)
	if err := row.Scan(&c.ID, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("read back chain %s: %w", c.Key(), err)
	}
	c.Status = chain.Status(status)
	return nil
}

// ActiveChains returns the active chains for a shipment, newest trigger
// first, with read-time fields rehydrated.
func (r *ChainRepository) ActiveChains(ctx context.Context, shipmentID string) ([]chain.Chain, error) {
	return r.query(ctx, `
		SELECT `+chainColumns+` FROM narrative_chains
		WHERE shipment_id = ? AND chain_status = 'active'
		ORDER BY trigger_occurred_at DESC`, shipmentID)
}

// AllChains returns every chain row for a shipment, superseded history
// included, newest trigger first.
func (r *ChainRepository) AllChains(ctx context.Context, shipmentID string) ([]chain.Chain, error) {
	return r.query(ctx, `
		SELECT `+chainColumns+` FROM narrative_chains
		WHERE shipment_id = ?
		ORDER BY trigger_occurred_at DESC, created_at DESC`, shipmentID)
}

// GetChain loads one chain by id.
func (r *ChainRepository) GetChain(ctx context.Context, id string) (*chain.Chain, error) {
	chains, err := r.query(ctx, `SELECT `+chainColumns+` FROM narrative_chains WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("chain %s: %w", id, sql.ErrNoRows)
	}
	return &chains[0], nil
}

// UpdateStatus applies an operator status override. Resolving stamps
// resolved_at; detection provenance (auto_detected) is left untouched.
func (r *ChainRepository) UpdateStatus(ctx context.Context, id string, status chain.Status, resolutionSummary string) error {
	now := r.now().UTC()
	var res sql.Result
	var err error
	if status == chain.StatusResolved {
		res, err = r.db.ExecContext(ctx, `
			UPDATE narrative_chains
			SET chain_status = ?, resolved_at = ?, resolution_summary = CASE WHEN ? != '' THEN ? ELSE resolution_summary END, updated_at = ?
			WHERE id = ?`,
			string(status), now, resolutionSummary, resolutionSummary, now, id)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE narrative_chains SET chain_status = ?, updated_at = ? WHERE id = ?`,
			string(status), now, id)
	}
	if err != nil {
		return fmt.Errorf("update chain %s status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chain %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// SupersedeAutoDetected marks every live auto-detected chain of a shipment
// superseded, freeing their keys for the re-detection that follows.
func (r *ChainRepository) SupersedeAutoDetected(ctx context.Context, shipmentID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE narrative_chains
		SET chain_status = 'superseded', updated_at = ?
		WHERE shipment_id = ? AND auto_detected = 1 AND chain_status != 'superseded'`,
		r.now().UTC(), shipmentID)
	if err != nil {
		return 0, fmt.Errorf("supersede chains for %s: %w", shipmentID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// MarkStaleBefore flips active chains untouched since cutoff to stale and
// returns the count.
func (r *ChainRepository) MarkStaleBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE narrative_chains
		SET chain_status = 'stale'
		WHERE chain_status = 'active' AND updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("mark stale: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// StatusCounts returns the number of chains per status.
func (r *ChainRepository) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT chain_status, COUNT(*) FROM narrative_chains GROUP BY chain_status`)
	if err != nil {
		return nil, fmt.Errorf("count chains: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *ChainRepository) query(ctx context.Context, q string, args ...any) ([]chain.Chain, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query chains: %w", err)
	}
	defer rows.Close()

	now := r.now()
	var chains []chain.Chain
	for rows.Next() {
		c, err := scanChain(rows, now)
		if err != nil {
			return nil, err
		}
		chains = append(chains, *c)
	}
	return chains, rows.Err()
}

// scanChain deserializes one row back into the structured domain shape and
// rehydrates daysAgo / daysInCurrentState against now.
func scanChain(rows *sql.Rows, now time.Time) (*chain.Chain, error) {
	var c chain.Chain
	var chainType, status string
	var eventsJSON, partiesJSON string
	var triggerAt, stateSince sql.NullTime
	var deadline, resolvedAt sql.NullTime
	var delayDays sql.NullInt64
	var financial sql.NullFloat64
	if err := rows.Scan(
		&c.ID, &c.ShipmentID, &chainType, &status,
		&c.Trigger.EventID, &c.Trigger.EventType, &c.Trigger.Summary, &triggerAt, &c.Trigger.Party,
		&eventsJSON, &c.CurrentState, &c.CurrentStateParty, &stateSince,
		&c.Headline, &c.Summary, &c.Full,
		&delayDays, &financial, &partiesJSON,
		&c.Resolution.Required, &deadline, &resolvedAt, &c.Resolution.ResolvedBy, &c.Resolution.Summary,
		&c.AutoDetected, &c.Confidence, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan chain: %w", err)
	}
	c.Type = chain.Type(chainType)
	c.Status = chain.Status(status)
	if triggerAt.Valid {
		c.Trigger.OccurredAt = triggerAt.Time
		c.Trigger.DaysAgo = daysSince(triggerAt.Time, now)
	}
	if stateSince.Valid {
		c.DaysInCurrentState = daysSince(stateSince.Time, now)
	}
	if deadline.Valid {
		t := deadline.Time
		c.Resolution.Deadline = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.Resolution.ResolvedAt = &t
	}
	if delayDays.Valid {
		d := int(delayDays.Int64)
		c.Impact.DelayDays = &d
	}
	if financial.Valid {
		f := financial.Float64
		c.Impact.FinancialUSD = &f
	}
	if err := json.Unmarshal([]byte(eventsJSON), &c.Events); err != nil {
		return nil, fmt.Errorf("unmarshal chain events: %w", err)
	}
	if err := json.Unmarshal([]byte(partiesJSON), &c.Impact.AffectedParties); err != nil {
		return nil, fmt.Errorf("unmarshal affected parties: %w", err)
	}
	return &c, nil
}

func daysSince(from, now time.Time) int {
	d := int(now.Sub(from).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
