// Command swipe-sim seeds a deck of cards into a running cards API, then
// simulates swipe and matchup traffic so the rating pipeline can be
// exercised end to end. Each card gets a hidden appeal that drives both
// swipe outcomes and matchup verdicts, so the final leaderboard should
// roughly recover the appeal order.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swipedeck/cardrank/internal/apiclient"
)

type deckEntry struct {
	Title     string   `yaml:"title"`
	EloRating *float64 `yaml:"eloRating"`
	KFactor   *float64 `yaml:"kFactor"`
}

type deckFile struct {
	Cards []deckEntry `yaml:"cards"`
}

func main() {
	var (
		api      = flag.String("api", "http://localhost:8080", "cards API base URL")
		token    = flag.String("token", "", "bearer token for card creation")
		deckPath = flag.String("deck", "deck.yaml", "path to the YAML seed deck")
		swipes   = flag.Int("swipes", 200, "number of swipes to simulate")
		matchups = flag.Int("matchups", 50, "number of matchups to simulate")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[swipe-sim] ", log.LstdFlags)
	rng := rand.New(rand.NewSource(*seed))

	deck, err := loadDeck(*deckPath)
	if err != nil {
		log.Fatalf("load deck: %v", err)
	}
	if len(deck) < 2 {
		log.Fatalf("deck needs at least two cards, got %d", len(deck))
	}

	client, err := apiclient.New(*api, *token, 5*time.Second, logger)
	if err != nil {
		log.Fatalf("create api client: %v", err)
	}

	ctx := context.Background()

	cards := make([]apiclient.Card, 0, len(deck))
	appeal := make(map[string]float64, len(deck))
	for _, entry := range deck {
		card, err := client.CreateCard(ctx, apiclient.CreateCardParams{
			Title:     entry.Title,
			EloRating: entry.EloRating,
			KFactor:   entry.KFactor,
		})
		if err != nil {
			log.Fatalf("create card %q: %v", entry.Title, err)
		}
		cards = append(cards, card)
		appeal[card.ID] = 0.2 + 0.6*rng.Float64()
	}
	logger.Printf("seeded %d cards from %s", len(cards), *deckPath)

	runSwipes(ctx, client, logger, rng, cards, appeal, *swipes)
	runMatchups(ctx, client, logger, rng, appeal, *matchups)

	ranked, err := client.Rankings(ctx, len(cards))
	if err != nil {
		log.Fatalf("fetch rankings: %v", err)
	}
	printRankings(ranked)
}

func loadDeck(path string) ([]deckEntry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file deckFile
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("parse deck: %w", err)
	}
	for i, entry := range file.Cards {
		if entry.Title == "" {
			return nil, fmt.Errorf("deck entry %d has no title", i)
		}
	}
	return file.Cards, nil
}

func runSwipes(ctx context.Context, client *apiclient.Client, logger *log.Logger, rng *rand.Rand, cards []apiclient.Card, appeal map[string]float64, count int) {
	likes := 0
	for i := 0; i < count; i++ {
		card := cards[rng.Intn(len(cards))]
		like := rng.Float64() < appeal[card.ID]
		if _, err := client.Swipe(ctx, card.ID, like); err != nil {
			logger.Printf("swipe %d on %q failed: %v", i, card.Title, err)
			continue
		}
		if like {
			likes++
		}
	}
	logger.Printf("simulated %d swipes (%d likes)", count, likes)
}

func runMatchups(ctx context.Context, client *apiclient.Client, logger *log.Logger, rng *rand.Rand, appeal map[string]float64, count int) {
	settled := 0
	for i := 0; i < count; i++ {
		pair, err := client.NextMatchup(ctx)
		if err != nil {
			logger.Printf("next matchup failed: %v", err)
			return
		}

		// The judged winner leans toward the more appealing card, with
		// noise so upsets stay possible.
		winner, loser := pair.CardA, pair.CardB
		scoreA := appeal[pair.CardA.ID] + 0.2*rng.NormFloat64()
		scoreB := appeal[pair.CardB.ID] + 0.2*rng.NormFloat64()
		if scoreB > scoreA {
			winner, loser = pair.CardB, pair.CardA
		}

		if _, err := client.SubmitMatchup(ctx, winner.ID, loser.ID); err != nil {
			logger.Printf("matchup %d (%q vs %q) failed: %v", i, winner.Title, loser.Title, err)
			continue
		}
		settled++
	}
	logger.Printf("settled %d matchups", settled)
}

func printRankings(ranked []apiclient.RankedCard) {
	fmt.Println()
	fmt.Println("rank  card                              elo      conf  score    swipes")
	for _, row := range ranked {
		fmt.Printf("%4d  %-32s  %7.1f  %4.2f  %7.1f  +%d/-%d\n",
			row.Rank, row.Title, row.EloRating, row.ConfidenceScore, row.RankingScore,
			row.LikesCount, row.DislikesCount)
	}
}
