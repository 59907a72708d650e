package domain

import (
	"errors"
	"math"
	"time"
)

// Standard ELO constants shared by every new card. 1500/32 are the
// conventional chess-ladder starting values; 400 rating points correspond to
// a tenfold odds ratio in the logistic curve.
const (
	DefaultEloRating  = 1500.0
	DefaultEloKFactor = 32.0

	eloScale = 400.0

	// fullConfidenceInteractions is the sample size at which a card's rating
	// counts as fully established.
	fullConfidenceInteractions = 100.0
)

var (
	// ErrEmptyID indicates a card was constructed without an identifier.
	ErrEmptyID = errors.New("domain: card id is required")
	// ErrInvalidRating indicates a rating argument was NaN or infinite.
	ErrInvalidRating = errors.New("domain: rating must be a finite number")
	// ErrInvalidKFactor indicates a K-factor override was not a positive finite number.
	ErrInvalidKFactor = errors.New("domain: k-factor must be a positive finite number")
)

// Card represents a swipeable card together with the interaction counters
// and ELO state used to rank it against its peers. Mutations go through the
// methods below; concurrent callers must serialize per card (the repository
// does this with row locks).
type Card struct {
	ID                string
	Title             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LikesCount        int64
	DislikesCount     int64
	TotalInteractions int64
	LastInteractionAt *time.Time
	EloRating         float64
	EloKFactor        float64
	ConfidenceScore   float64
}

// NewCardParams bundles the fields required to construct a card. EloRating
// and EloKFactor are optional; nil selects the standard defaults.
type NewCardParams struct {
	ID         string
	Title      string
	EloRating  *float64
	EloKFactor *float64
}

// NewCard constructs a card with zeroed counters, no recorded interaction,
// and the standard ELO defaults unless overridden.
func NewCard(params NewCardParams) (Card, error) {
	if params.ID == "" {
		return Card{}, ErrEmptyID
	}

	rating := DefaultEloRating
	if params.EloRating != nil {
		rating = *params.EloRating
		if !isFinite(rating) {
			return Card{}, ErrInvalidRating
		}
	}

	kFactor := DefaultEloKFactor
	if params.EloKFactor != nil {
		kFactor = *params.EloKFactor
		if !isFinite(kFactor) || kFactor <= 0 {
			return Card{}, ErrInvalidKFactor
		}
	}

	now := time.Now().UTC()
	return Card{
		ID:         params.ID,
		Title:      params.Title,
		CreatedAt:  now,
		UpdatedAt:  now,
		EloRating:  rating,
		EloKFactor: kFactor,
	}, nil
}

// RecordInteraction counts one swipe outcome: a like when isLike is true,
// otherwise a dislike. Every call is an independent event; calling twice
// records two interactions.
func (c *Card) RecordInteraction(isLike bool) {
	if isLike {
		c.LikesCount++
	} else {
		c.DislikesCount++
	}
	c.TotalInteractions++

	now := time.Now().UTC()
	c.LastInteractionAt = &now
	c.UpdatedAt = now
	c.refreshConfidence()
}

// WinProbability returns the expected probability, in the open interval
// (0,1), that this card wins a pairwise comparison against an opponent
// holding opponentRating. Calls with swapped ratings sum to 1.
func (c Card) WinProbability(opponentRating float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponentRating-c.EloRating)/eloScale))
}

// ApplyRatingUpdate moves the card's rating after one comparison outcome,
// by EloKFactor times the surprise (actual minus expected score). The
// opponent's rating is not touched; the caller applies the mirror update to
// the other side. A non-finite opponent rating is rejected before any state
// changes.
func (c *Card) ApplyRatingUpdate(opponentRating float64, won bool) error {
	if !isFinite(opponentRating) {
		return ErrInvalidRating
	}

	expected := c.WinProbability(opponentRating)
	actual := 0.0
	if won {
		actual = 1.0
	}

	c.EloRating += c.EloKFactor * (actual - expected)
	c.refreshConfidence()
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// RankingScore weights the raw rating by confidence so a card with a single
// lucky win does not outrank a well-established one. A card with no
// interactions scores zero regardless of its rating.
func (c Card) RankingScore() float64 {
	return c.EloRating * c.ConfidenceScore
}

// ResolveMatchup applies one comparison outcome to both sides. Both updates
// are computed from the ratings held before either side changed, so the two
// applications commute and the rating sum is conserved whenever the
// K-factors match.
func ResolveMatchup(winner, loser *Card) error {
	winnerRating := winner.EloRating
	loserRating := loser.EloRating

	if err := winner.ApplyRatingUpdate(loserRating, true); err != nil {
		return err
	}
	return loser.ApplyRatingUpdate(winnerRating, false)
}

// refreshConfidence keeps ConfidenceScore equal to
// min(1, TotalInteractions/100) after every mutation.
func (c *Card) refreshConfidence() {
	c.ConfidenceScore = math.Min(1.0, float64(c.TotalInteractions)/fullConfidenceInteractions)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
