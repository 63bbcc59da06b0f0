// Package store is the durable backing for the ledger's append-only
// transaction log, plus upserts for snapshotting agents and poker/duel
// state. Only the transaction mirror (Persist, via ledger.SetPersistSink) is
// wired in; the snapshot upserts have no caller in this module, and nothing
// reads the stored state back into the in-memory engines at startup.
//
// Grounded on the teacher's internal/db/postgres.go PostgresStore: a
// pgxpool.Pool behind Connect/Close/InitSchema, transactional multi-row
// writes via Begin/defer-Rollback/Commit, and single-row upserts via
// ON CONFLICT DO UPDATE.
package store

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RobotsMakeThings/clawcasino-sub000/internal/agent"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/duel"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/ledger"
	"github.com/RobotsMakeThings/clawcasino-sub000/internal/poker"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Println("store: connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schemaBytes, err := os.ReadFile("internal/store/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	log.Println("store: schema initialized")
	return nil
}

// agentRef renders an agent.ID as a nullable text parameter: the zero
// agent.ID (e.g. the acceptor of a duel nobody has accepted yet) persists as
// SQL NULL rather than the zero UUID.
func agentRef(id agent.ID) interface{} {
	var zero agent.ID
	if id == zero {
		return nil
	}
	return id.String()
}

// UpsertAgent records (or updates the display name of) an authenticated
// agent.
func (s *PostgresStore) UpsertAgent(ctx context.Context, a *agent.Agent) error {
	sql := `
		INSERT INTO agents (id, display_name, wallet_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
	`
	_, err := s.pool.Exec(ctx, sql, a.ID.String(), a.DisplayName, a.WalletKey.SerializeCompressed())
	return err
}

// RecordTransaction appends one ledger row. Transactions are immutable
// once written (spec §3); this is a plain INSERT, never an upsert.
func (s *PostgresStore) RecordTransaction(ctx context.Context, t ledger.Transaction) error {
	sql := `
		INSERT INTO transactions (id, agent_id, kind, currency, amount, post_balance, reference, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, sql, t.ID.String(), agentRef(t.Agent), string(t.Kind), string(t.Currency),
		t.Amount.String(), t.PostBalance.String(), t.Reference, t.Note, t.Time)
	return err
}

// RecordRake appends one rake-log row, carrying no agent id (spec §4.3's
// "rake aggregate row if no house agent is modeled" case).
func (s *PostgresStore) RecordRake(ctx context.Context, t ledger.Transaction) error {
	sql := `
		INSERT INTO rake_log (id, currency, amount, reference, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, sql, t.ID.String(), string(t.Currency), t.Amount.String(), t.Reference, t.Note, t.Time)
	return err
}

// Persist implements ledger.PersistSink, mirroring every appended
// transaction into the durable log as it happens. Rake rows (which carry
// no agent) are routed to rake_log; everything else to transactions.
func (s *PostgresStore) Persist(t ledger.Transaction) {
	ctx := context.Background()
	var err error
	if t.Kind == ledger.KindRake {
		err = s.RecordRake(ctx, t)
	} else {
		err = s.RecordTransaction(ctx, t)
	}
	if err != nil {
		log.Printf("store: failed to persist transaction %s: %v", t.ID, err)
	}
}

// UpsertPokerTable snapshots a table's static configuration.
func (s *PostgresStore) UpsertPokerTable(ctx context.Context, cfg poker.Config) error {
	sql := `
		INSERT INTO poker_tables (id, name, small_blind, big_blind, min_buy_in, max_buy_in, max_seats, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`
	_, err := s.pool.Exec(ctx, sql, cfg.ID.String(), cfg.Name, cfg.SmallBlind.String(), cfg.BigBlind.String(),
		cfg.MinBuyIn.String(), cfg.MaxBuyIn.String(), cfg.MaxSeats, string(cfg.Currency))
	return err
}

// UpsertPokerSeat snapshots a single seat's current state.
func (s *PostgresStore) UpsertPokerSeat(ctx context.Context, tableID uuid.UUID, seat poker.Seat) error {
	sql := `
		INSERT INTO poker_seats (table_id, seat_index, agent_id, chips, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (table_id, seat_index) DO UPDATE
		SET agent_id = EXCLUDED.agent_id, chips = EXCLUDED.chips, status = EXCLUDED.status, updated_at = now()
	`
	var agentID interface{}
	if seat.Occupied {
		agentID = seat.Agent.String()
	}
	_, err := s.pool.Exec(ctx, sql, tableID.String(), seat.Index, agentID, seat.Chips.String(), string(seat.Status))
	return err
}

// UpsertDuelGame snapshots a duel's current lifecycle state, shared by
// coinflip and RPS via the same Game type — routed to the matching table
// by Kind.
func (s *PostgresStore) UpsertDuelGame(ctx context.Context, g *duel.Game) error {
	if g.Kind == duel.Coinflip {
		sql := `
			INSERT INTO coinflip_games (id, creator_id, acceptor_id, stake, currency, status, creator_wallet, acceptor_wallet, commitment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, acceptor_id = EXCLUDED.acceptor_id, acceptor_wallet = EXCLUDED.acceptor_wallet
		`
		_, err := s.pool.Exec(ctx, sql, g.ID.String(), g.Creator.String(), agentRef(g.Acceptor), g.Stake.String(),
			string(g.Currency), string(g.Status), g.CreatorWallet, g.AcceptorWallet, g.CreatorCommitment[:], g.CreatedAt)
		return err
	}
	sql := `
		INSERT INTO rps_games (id, creator_id, acceptor_id, stake, currency, rounds, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, acceptor_id = EXCLUDED.acceptor_id
	`
	_, err := s.pool.Exec(ctx, sql, g.ID.String(), g.Creator.String(), agentRef(g.Acceptor), g.Stake.String(),
		string(g.Currency), g.Rounds, string(g.Status), g.CreatedAt)
	return err
}

// GetPool exposes the connection pool to callers that need a raw query
// (e.g. an admin reporting surface), mirroring the teacher's GetPool.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
