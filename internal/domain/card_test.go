package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mustNewCard(t *testing.T, id, title string) Card {
	t.Helper()
	card, err := NewCard(NewCardParams{ID: id, Title: title})
	if err != nil {
		t.Fatalf("NewCard(%q, %q): %v", id, title, err)
	}
	return card
}

func floatPtr(f float64) *float64 { return &f }

func TestNewCardDefaults(t *testing.T) {
	card := mustNewCard(t, "card-1", "First card")

	assert.Equal(t, "card-1", card.ID)
	assert.Equal(t, "First card", card.Title)
	assert.Equal(t, int64(0), card.LikesCount)
	assert.Equal(t, int64(0), card.DislikesCount)
	assert.Equal(t, int64(0), card.TotalInteractions)
	assert.Nil(t, card.LastInteractionAt)
	assert.Equal(t, 1500.0, card.EloRating)
	assert.Equal(t, 32.0, card.EloKFactor)
	assert.Equal(t, 0.0, card.ConfidenceScore)
	assert.Equal(t, card.CreatedAt, card.UpdatedAt)
	assert.False(t, card.CreatedAt.IsZero())
}

func TestNewCardOverrides(t *testing.T) {
	card, err := NewCard(NewCardParams{
		ID:         "card-2",
		Title:      "Tuned card",
		EloRating:  floatPtr(1650.0),
		EloKFactor: floatPtr(16.0),
	})

	assert.NoError(t, err)
	assert.Equal(t, 1650.0, card.EloRating)
	assert.Equal(t, 16.0, card.EloKFactor)
}

func TestNewCardValidation(t *testing.T) {
	tests := []struct {
		name     string
		params   NewCardParams
		expected error
	}{{
		"empty id",
		NewCardParams{Title: "No id"},
		ErrEmptyID,
	}, {
		"NaN rating",
		NewCardParams{ID: "c", Title: "t", EloRating: floatPtr(math.NaN())},
		ErrInvalidRating,
	}, {
		"infinite rating",
		NewCardParams{ID: "c", Title: "t", EloRating: floatPtr(math.Inf(1))},
		ErrInvalidRating,
	}, {
		"NaN k-factor",
		NewCardParams{ID: "c", Title: "t", EloKFactor: floatPtr(math.NaN())},
		ErrInvalidKFactor,
	}, {
		"zero k-factor",
		NewCardParams{ID: "c", Title: "t", EloKFactor: floatPtr(0)},
		ErrInvalidKFactor,
	}, {
		"negative k-factor",
		NewCardParams{ID: "c", Title: "t", EloKFactor: floatPtr(-8)},
		ErrInvalidKFactor,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewCard(test.params)
			assert.ErrorIs(t, err, test.expected)
		})
	}
}

func TestRecordInteractionCounts(t *testing.T) {
	card := mustNewCard(t, "card-3", "Counted card")

	card.RecordInteraction(true)
	card.RecordInteraction(true)
	card.RecordInteraction(false)

	assert.Equal(t, int64(2), card.LikesCount)
	assert.Equal(t, int64(1), card.DislikesCount)
	assert.Equal(t, int64(3), card.TotalInteractions)
	if assert.NotNil(t, card.LastInteractionAt) {
		assert.False(t, card.LastInteractionAt.IsZero())
	}
	assert.False(t, card.UpdatedAt.Before(card.CreatedAt))
}

func TestRecordInteractionConfidence(t *testing.T) {
	tests := []struct {
		name         string
		interactions int
		expected     float64
	}{{
		"no interactions",
		0,
		0.0,
	}, {
		"half sample",
		50,
		0.5,
	}, {
		"full sample",
		100,
		1.0,
	}, {
		"clamped past full sample",
		150,
		1.0,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			card := mustNewCard(t, "card-4", "Confidence card")
			for i := 0; i < test.interactions; i++ {
				card.RecordInteraction(i%2 == 0)
			}
			assert.Equal(t, test.expected, card.ConfidenceScore)
			assert.Equal(t, int64(test.interactions), card.TotalInteractions)
		})
	}
}

func TestRecordInteractionUpdatedAtMonotonic(t *testing.T) {
	card := mustNewCard(t, "card-5", "Clocked card")

	previous := card.UpdatedAt
	for i := 0; i < 10; i++ {
		card.RecordInteraction(true)
		assert.False(t, card.UpdatedAt.Before(previous))
		previous = card.UpdatedAt
	}
}

func TestWinProbabilityEvenMatch(t *testing.T) {
	card := mustNewCard(t, "card-6", "Even card")
	assert.Equal(t, 0.5, card.WinProbability(card.EloRating))
}

func TestWinProbabilityKnownValues(t *testing.T) {
	card := mustNewCard(t, "card-7", "Known card")

	tests := []struct {
		name     string
		opponent float64
		expected float64
	}{{
		"400 points below",
		1100,
		10.0 / 11.0,
	}, {
		"400 points above",
		1900,
		1.0 / 11.0,
	}, {
		"200 points above",
		1700,
		1.0 / (1.0 + math.Pow(10, 0.5)),
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.InDelta(t, test.expected, card.WinProbability(test.opponent), 1e-12)
		})
	}
}

func TestWinProbabilityStrictlyDecreasing(t *testing.T) {
	card := mustNewCard(t, "card-8", "Monotonic card")

	previous := card.WinProbability(500)
	for opponent := 600.0; opponent <= 2500; opponent += 100 {
		p := card.WinProbability(opponent)
		assert.Less(t, p, previous, "opponent %v", opponent)
		assert.Greater(t, p, 0.0)
		assert.Less(t, p, 1.0)
		previous = p
	}
}

func TestWinProbabilityReciprocity(t *testing.T) {
	tests := []struct {
		name    string
		ratingA float64
		ratingB float64
	}{{
		"even",
		1500,
		1500,
	}, {
		"moderate gap",
		1450,
		1620,
	}, {
		"large gap",
		1100,
		2100,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a, err := NewCard(NewCardParams{ID: "a", Title: "A", EloRating: floatPtr(test.ratingA)})
			assert.NoError(t, err)
			b, err := NewCard(NewCardParams{ID: "b", Title: "B", EloRating: floatPtr(test.ratingB)})
			assert.NoError(t, err)

			sum := a.WinProbability(b.EloRating) + b.WinProbability(a.EloRating)
			assert.InDelta(t, 1.0, sum, 1e-12)
		})
	}
}

func TestApplyRatingUpdateEvenMatch(t *testing.T) {
	winner := mustNewCard(t, "winner", "Winner")
	loser := mustNewCard(t, "loser", "Loser")

	assert.NoError(t, winner.ApplyRatingUpdate(1500.0, true))
	assert.NoError(t, loser.ApplyRatingUpdate(1500.0, false))

	assert.Equal(t, 1516.0, winner.EloRating)
	assert.Equal(t, 1484.0, loser.EloRating)
}

func TestApplyRatingUpdateDirection(t *testing.T) {
	tests := []struct {
		name     string
		rating   float64
		opponent float64
		won      bool
	}{{
		"underdog win",
		1400,
		1800,
		true,
	}, {
		"favorite win",
		1800,
		1400,
		true,
	}, {
		"underdog loss",
		1400,
		1800,
		false,
	}, {
		"favorite loss",
		1800,
		1400,
		false,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			card, err := NewCard(NewCardParams{ID: "c", Title: "t", EloRating: floatPtr(test.rating)})
			assert.NoError(t, err)

			assert.NoError(t, card.ApplyRatingUpdate(test.opponent, test.won))
			if test.won {
				assert.Greater(t, card.EloRating, test.rating)
			} else {
				assert.Less(t, card.EloRating, test.rating)
			}
		})
	}
}

func TestApplyRatingUpdateSurpriseMagnitude(t *testing.T) {
	underdog, err := NewCard(NewCardParams{ID: "u", Title: "Underdog", EloRating: floatPtr(1400.0)})
	assert.NoError(t, err)
	favorite, err := NewCard(NewCardParams{ID: "f", Title: "Favorite", EloRating: floatPtr(1800.0)})
	assert.NoError(t, err)

	assert.NoError(t, underdog.ApplyRatingUpdate(1800.0, true))
	assert.NoError(t, favorite.ApplyRatingUpdate(1400.0, true))

	underdogGain := underdog.EloRating - 1400.0
	favoriteGain := favorite.EloRating - 1800.0
	assert.Greater(t, underdogGain, favoriteGain)
}

func TestApplyRatingUpdateRejectsNonFinite(t *testing.T) {
	card := mustNewCard(t, "card-9", "Guarded card")
	card.RecordInteraction(true)
	before := card

	for _, opponent := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := card.ApplyRatingUpdate(opponent, true)
		assert.ErrorIs(t, err, ErrInvalidRating)
	}

	assert.Equal(t, before.EloRating, card.EloRating)
	assert.Equal(t, before.ConfidenceScore, card.ConfidenceScore)
	assert.Equal(t, before.UpdatedAt, card.UpdatedAt)
}

func TestApplyRatingUpdateRefreshesConfidence(t *testing.T) {
	card := mustNewCard(t, "card-10", "Sampled card")
	for i := 0; i < 50; i++ {
		card.RecordInteraction(true)
	}

	assert.NoError(t, card.ApplyRatingUpdate(1500.0, true))
	assert.Equal(t, 0.5, card.ConfidenceScore)
}

func TestRankingScore(t *testing.T) {
	card := mustNewCard(t, "card-11", "Ranked card")

	// A fresh card ranks at zero no matter how strong its rating.
	assert.Equal(t, 0.0, card.RankingScore())

	strong, err := NewCard(NewCardParams{ID: "s", Title: "Strong", EloRating: floatPtr(2400.0)})
	assert.NoError(t, err)
	assert.Equal(t, 0.0, strong.RankingScore())

	for i := 0; i < 50; i++ {
		card.RecordInteraction(true)
	}
	assert.Equal(t, card.EloRating*0.5, card.RankingScore())
}

func TestResolveMatchupEvenMatch(t *testing.T) {
	a := mustNewCard(t, "a", "A")
	b := mustNewCard(t, "b", "B")

	assert.NoError(t, ResolveMatchup(&a, &b))
	assert.Equal(t, 1516.0, a.EloRating)
	assert.Equal(t, 1484.0, b.EloRating)
}

func TestResolveMatchupUsesPreUpdateRatings(t *testing.T) {
	winner, err := NewCard(NewCardParams{ID: "w", Title: "W", EloRating: floatPtr(1500.0)})
	assert.NoError(t, err)
	loser, err := NewCard(NewCardParams{ID: "l", Title: "L", EloRating: floatPtr(1700.0)})
	assert.NoError(t, err)

	expectedWin := winner.WinProbability(1700.0)
	expectedLoss := loser.WinProbability(1500.0)

	assert.NoError(t, ResolveMatchup(&winner, &loser))

	assert.InDelta(t, 1500.0+32.0*(1.0-expectedWin), winner.EloRating, 1e-12)
	assert.InDelta(t, 1700.0+32.0*(0.0-expectedLoss), loser.EloRating, 1e-12)
}

func TestResolveMatchupConservesRatingSum(t *testing.T) {
	tests := []struct {
		name        string
		winnerStart float64
		loserStart  float64
	}{{
		"even",
		1500,
		1500,
	}, {
		"winner ahead",
		1900,
		1500,
	}, {
		"winner behind",
		1300,
		1750,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			winner, err := NewCard(NewCardParams{ID: "w", Title: "W", EloRating: floatPtr(test.winnerStart)})
			assert.NoError(t, err)
			loser, err := NewCard(NewCardParams{ID: "l", Title: "L", EloRating: floatPtr(test.loserStart)})
			assert.NoError(t, err)

			assert.NoError(t, ResolveMatchup(&winner, &loser))

			sum := winner.EloRating + loser.EloRating
			assert.InDelta(t, test.winnerStart+test.loserStart, sum, 1e-9)
			assert.Greater(t, winner.EloRating, test.winnerStart)
			assert.Less(t, loser.EloRating, test.loserStart)
		})
	}
}

func TestResolveMatchupTouchesTimestamps(t *testing.T) {
	a := mustNewCard(t, "a", "A")
	b := mustNewCard(t, "b", "B")
	beforeA := a.UpdatedAt
	beforeB := b.UpdatedAt

	time.Sleep(time.Millisecond)
	assert.NoError(t, ResolveMatchup(&a, &b))

	assert.True(t, a.UpdatedAt.After(beforeA))
	assert.True(t, b.UpdatedAt.After(beforeB))
}
