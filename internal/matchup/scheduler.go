// Package matchup selects card pairs for head-to-head comparison and
// settles their outcomes.
package matchup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/swipedeck/cardrank/internal/domain"
)

// ErrNotEnoughCards indicates the deck is too small to form a pair.
var ErrNotEnoughCards = errors.New("matchup: need at least two cards")

// CandidateSource supplies cards to pair up and applies settled outcomes.
// *repository.CardsRepository satisfies it.
type CandidateSource interface {
	Sample(ctx context.Context, n int) ([]domain.Card, error)
	ApplyMatchup(ctx context.Context, winnerID, loserID string) (domain.Card, domain.Card, error)
}

// Result carries both sides of a settled matchup with their new ratings.
type Result struct {
	Winner domain.Card
	Loser  domain.Card
}

// Scheduler picks matchup pairs from a random sample of the deck. Within
// the sample it prefers the two cards closest in rating, since near-even
// matchups move ratings the most per comparison.
type Scheduler struct {
	source     CandidateSource
	sampleSize int
	logger     *log.Logger
}

// NewScheduler builds a Scheduler. Sample sizes below 2 are raised to 2.
func NewScheduler(source CandidateSource, sampleSize int, logger *log.Logger) *Scheduler {
	if sampleSize < 2 {
		sampleSize = 2
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		source:     source,
		sampleSize: sampleSize,
		logger:     logger,
	}
}

// NextPair proposes two cards for comparison. It returns ErrNotEnoughCards
// when fewer than two cards exist.
func (s *Scheduler) NextPair(ctx context.Context) (domain.Card, domain.Card, error) {
	cards, err := s.source.Sample(ctx, s.sampleSize)
	if err != nil {
		return domain.Card{}, domain.Card{}, fmt.Errorf("sample candidates: %w", err)
	}
	if len(cards) < 2 {
		return domain.Card{}, domain.Card{}, ErrNotEnoughCards
	}
	a, b := closestPair(cards)
	return a, b, nil
}

// Judge settles a matchup outcome against the deck.
func (s *Scheduler) Judge(ctx context.Context, winnerID, loserID string) (Result, error) {
	winner, loser, err := s.source.ApplyMatchup(ctx, winnerID, loserID)
	if err != nil {
		return Result{}, err
	}
	s.logger.Printf("matchup: %q beat %q (%.1f vs %.1f)", winner.Title, loser.Title, winner.EloRating, loser.EloRating)
	return Result{Winner: winner, Loser: loser}, nil
}

// closestPair returns the two cards with the smallest rating gap. Ties keep
// the lowest-rated pair so the choice is deterministic for a given sample.
func closestPair(cards []domain.Card) (domain.Card, domain.Card) {
	sorted := make([]domain.Card, len(cards))
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].EloRating != sorted[j].EloRating {
			return sorted[i].EloRating < sorted[j].EloRating
		}
		return sorted[i].ID < sorted[j].ID
	})

	bestA, bestB := sorted[0], sorted[1]
	bestGap := bestB.EloRating - bestA.EloRating
	for i := 2; i < len(sorted); i++ {
		gap := sorted[i].EloRating - sorted[i-1].EloRating
		if gap < bestGap {
			bestA, bestB = sorted[i-1], sorted[i]
			bestGap = gap
		}
	}
	return bestA, bestB
}
