package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swipedeck/cardrank/internal/domain"
)

// CardsRepository provides persistence helpers for card entities.
type CardsRepository struct {
	pool *pgxpool.Pool
}

const cardColumns = `
    id,
    title,
    created_at,
    updated_at,
    likes_count,
    dislikes_count,
    total_interactions,
    last_interaction_at,
    elo_rating,
    elo_k_factor,
    confidence_score
`

// CardListFilters encapsulates search and pagination options.
type CardListFilters struct {
	Query           *string
	MinInteractions *int64
	Limit           int
	Cursor          *CardCursor
}

// CardCursor allows stable pagination by created_at/id.
type CardCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// CardListResult returns the paginated payload.
type CardListResult struct {
	Items      []domain.Card
	NextCursor *string
}

// Create inserts a new card row and returns the stored entity. The entity is
// persisted exactly as constructed; defaults come from domain.NewCard, not
// the schema.
func (r *CardsRepository) Create(ctx context.Context, card domain.Card) (domain.Card, error) {
	query := fmt.Sprintf(`
        INSERT INTO cards (id, title, created_at, updated_at, likes_count, dislikes_count,
                           total_interactions, last_interaction_at, elo_rating, elo_k_factor, confidence_score)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING %s
    `, cardColumns)

	row := r.pool.QueryRow(ctx, query,
		card.ID,
		card.Title,
		card.CreatedAt,
		card.UpdatedAt,
		card.LikesCount,
		card.DislikesCount,
		card.TotalInteractions,
		card.LastInteractionAt,
		card.EloRating,
		card.EloKFactor,
		card.ConfidenceScore,
	)
	return scanCard(row)
}

// GetByID fetches a card by its identifier.
func (r *CardsRepository) GetByID(ctx context.Context, id string) (domain.Card, error) {
	query := fmt.Sprintf(`SELECT %s FROM cards WHERE id = $1`, cardColumns)
	card, err := scanCard(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Card{}, ErrNotFound
		}
		return domain.Card{}, err
	}
	return card, nil
}

// List returns cards that match the provided filters, newest first.
func (r *CardsRepository) List(ctx context.Context, filters CardListFilters) (CardListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		q := "%" + strings.TrimSpace(*filters.Query) + "%"
		where = append(where, fmt.Sprintf("title ILIKE %s", arg(q)))
	}
	if filters.MinInteractions != nil {
		where = append(where, fmt.Sprintf("total_interactions >= %s", arg(*filters.MinInteractions)))
	}
	if filters.Cursor != nil {
		cursorCreated := arg(filters.Cursor.CreatedAt)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)", cursorCreated, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(cardColumns)
	queryBuilder.WriteString(" FROM cards")

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return CardListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return CardListResult{}, err
		}
		items = append(items, card)
	}
	if err := rows.Err(); err != nil {
		return CardListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCursor(CardCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return CardListResult{}, err
		}
		nextCursor = &token
	}

	return CardListResult{Items: items, NextCursor: nextCursor}, nil
}

// Rankings returns cards ordered by confidence-weighted rating. Ties fall
// back to raw rating, then id, so the order is deterministic.
func (r *CardsRepository) Rankings(ctx context.Context, limit int) ([]domain.Card, error) {
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(`
        SELECT %s FROM cards
        ORDER BY elo_rating * confidence_score DESC, elo_rating DESC, id ASC
        LIMIT $1
    `, cardColumns)

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list rankings: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// Sample returns up to n cards drawn uniformly at random, for matchup pair
// selection.
func (r *CardsRepository) Sample(ctx context.Context, n int) ([]domain.Card, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sample size must be positive")
	}

	query := fmt.Sprintf(`SELECT %s FROM cards ORDER BY random() LIMIT $1`, cardColumns)
	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("sample cards: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// RecordSwipe registers one swipe outcome against a card and returns the
// updated entity. The row is locked for the duration of the transaction so
// concurrent swipes on the same card serialize instead of losing counts.
func (r *CardsRepository) RecordSwipe(ctx context.Context, id string, isLike bool) (domain.Card, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Card{}, fmt.Errorf("begin swipe: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	card, err := lockCard(ctx, tx, id)
	if err != nil {
		return domain.Card{}, err
	}

	card.RecordInteraction(isLike)

	if err := saveCard(ctx, tx, card); err != nil {
		return domain.Card{}, fmt.Errorf("save swipe: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Card{}, fmt.Errorf("commit swipe: %w", err)
	}
	return card, nil
}

// ApplyMatchup applies a comparison outcome to both cards in a single
// transaction and returns the updated winner and loser. Rows are locked in
// id order so concurrent matchups touching the same pair cannot deadlock.
func (r *CardsRepository) ApplyMatchup(ctx context.Context, winnerID, loserID string) (domain.Card, domain.Card, error) {
	if winnerID == loserID {
		return domain.Card{}, domain.Card{}, fmt.Errorf("apply matchup: winner and loser must differ")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Card{}, domain.Card{}, fmt.Errorf("begin matchup: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	firstID, secondID := winnerID, loserID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := lockCard(ctx, tx, firstID)
	if err != nil {
		return domain.Card{}, domain.Card{}, err
	}
	second, err := lockCard(ctx, tx, secondID)
	if err != nil {
		return domain.Card{}, domain.Card{}, err
	}

	winner, loser := first, second
	if winner.ID != winnerID {
		winner, loser = second, first
	}

	if err := domain.ResolveMatchup(&winner, &loser); err != nil {
		return domain.Card{}, domain.Card{}, fmt.Errorf("resolve matchup: %w", err)
	}

	if err := saveCard(ctx, tx, winner); err != nil {
		return domain.Card{}, domain.Card{}, fmt.Errorf("save winner: %w", err)
	}
	if err := saveCard(ctx, tx, loser); err != nil {
		return domain.Card{}, domain.Card{}, fmt.Errorf("save loser: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Card{}, domain.Card{}, fmt.Errorf("commit matchup: %w", err)
	}
	return winner, loser, nil
}

func lockCard(ctx context.Context, tx pgx.Tx, id string) (domain.Card, error) {
	query := fmt.Sprintf(`SELECT %s FROM cards WHERE id = $1 FOR UPDATE`, cardColumns)
	card, err := scanCard(tx.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Card{}, ErrNotFound
		}
		return domain.Card{}, err
	}
	return card, nil
}

func saveCard(ctx context.Context, tx pgx.Tx, card domain.Card) error {
	const query = `
        UPDATE cards
        SET likes_count = $2,
            dislikes_count = $3,
            total_interactions = $4,
            last_interaction_at = $5,
            elo_rating = $6,
            confidence_score = $7,
            updated_at = $8
        WHERE id = $1
    `
	_, err := tx.Exec(ctx, query,
		card.ID,
		card.LikesCount,
		card.DislikesCount,
		card.TotalInteractions,
		card.LastInteractionAt,
		card.EloRating,
		card.ConfidenceScore,
		card.UpdatedAt,
	)
	return err
}

func scanCard(row pgx.Row) (domain.Card, error) {
	var card domain.Card
	err := row.Scan(
		&card.ID,
		&card.Title,
		&card.CreatedAt,
		&card.UpdatedAt,
		&card.LikesCount,
		&card.DislikesCount,
		&card.TotalInteractions,
		&card.LastInteractionAt,
		&card.EloRating,
		&card.EloKFactor,
		&card.ConfidenceScore,
	)
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

func collectCards(rows pgx.Rows) ([]domain.Card, error) {
	cards := make([]domain.Card, 0)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func encodeCursor(c CardCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a CardCursor.
func DecodeCursor(token string) (*CardCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor CardCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &cursor, nil
}
