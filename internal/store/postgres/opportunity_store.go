package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a store backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, market_key, kind, venue, buy_venue, sell_venue,
	yes_bid, no_bid, buy_ask, sell_bid,
	gross_edge, fee_cost, net_profit_per_share, max_volume,
	net_profit_total, profit_percent,
	status, discovered_at, expired_at, duration_seconds`

// Insert stores one expired opportunity in the history table.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunity_history (
			id, market_key, kind, venue, buy_venue, sell_venue,
			yes_bid, no_bid, buy_ask, sell_bid,
			gross_edge, fee_cost, net_profit_per_share, max_volume,
			net_profit_total, profit_percent,
			status, discovered_at, expired_at, duration_seconds
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16,
			$17, $18, $19, $20
		)`

	_, err := s.pool.Exec(ctx, query,
		opp.ID, string(opp.MarketKey), string(opp.Kind), opp.Venue, opp.BuyVenue, opp.SellVenue,
		opp.YesBid, opp.NoBid, opp.BuyAsk, opp.SellBid,
		opp.GrossEdge, opp.FeeCost, opp.NetProfitPerShare, opp.MaxVolume,
		opp.NetProfitTotal, opp.ProfitPercent,
		string(opp.Status), opp.DiscoveredAt, opp.ExpiredAt, opp.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities ordered by discovery time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunity_history ORDER BY discovered_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// ListBefore returns opportunities that expired strictly before the cutoff.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM opportunity_history
		WHERE expired_at IS NOT NULL AND expired_at < $1
		ORDER BY expired_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before, err)
	}
	defer rows.Close()

	return scanOpportunities(rows)
}

// DeleteBefore prunes opportunities that expired strictly before the cutoff,
// returning the number of rows removed.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM opportunity_history WHERE expired_at IS NOT NULL AND expired_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var (
			opp          domain.Opportunity
			marketKey    string
			kind, status string
		)
		if err := rows.Scan(
			&opp.ID, &marketKey, &kind, &opp.Venue, &opp.BuyVenue, &opp.SellVenue,
			&opp.YesBid, &opp.NoBid, &opp.BuyAsk, &opp.SellBid,
			&opp.GrossEdge, &opp.FeeCost, &opp.NetProfitPerShare, &opp.MaxVolume,
			&opp.NetProfitTotal, &opp.ProfitPercent,
			&status, &opp.DiscoveredAt, &opp.ExpiredAt, &opp.DurationSeconds,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.MarketKey = domain.MarketKey(marketKey)
		opp.Kind = domain.OpportunityKind(kind)
		opp.Status = domain.OpportunityStatus(status)
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
