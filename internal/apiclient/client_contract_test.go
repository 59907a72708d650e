package apiclient

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"
)

// TestClientSmoke verifies the client can drive a full card lifecycle
// against a running service. Skipped unless CARDS_API_URL is set.
func TestClientSmoke(t *testing.T) {
	baseURL := os.Getenv("CARDS_API_URL")
	if baseURL == "" {
		t.Skip("CARDS_API_URL not provided")
	}
	token := os.Getenv("CARDS_API_TOKEN")
	client, err := New(baseURL, token, 3*time.Second, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	card, err := client.CreateCard(ctx, CreateCardParams{Title: "Smoke Card"})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	if card.EloRating != 1500.0 {
		t.Fatalf("fresh card elo = %v, want 1500", card.EloRating)
	}

	swiped, err := client.Swipe(ctx, card.ID, true)
	if err != nil {
		t.Fatalf("swipe: %v", err)
	}
	if swiped.LikesCount != card.LikesCount+1 {
		t.Fatalf("likes = %d, want %d", swiped.LikesCount, card.LikesCount+1)
	}

	ranked, err := client.Rankings(ctx, 10)
	if err != nil {
		t.Fatalf("rankings: %v", err)
	}
	if len(ranked) == 0 {
		t.Fatalf("rankings should include at least the created card")
	}
}
