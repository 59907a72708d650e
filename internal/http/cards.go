package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/swipedeck/cardrank/internal/domain"
	"github.com/swipedeck/cardrank/internal/matchup"
	"github.com/swipedeck/cardrank/internal/repository"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type cardCreateRequest struct {
	Title     string   `json:"title"`
	EloRating *float64 `json:"eloRating"`
	KFactor   *float64 `json:"kFactor"`
}

type cardResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	LikesCount        int64      `json:"likesCount"`
	DislikesCount     int64      `json:"dislikesCount"`
	TotalInteractions int64      `json:"totalInteractions"`
	LastInteractionAt *time.Time `json:"lastInteractionAt,omitempty"`
	EloRating         float64    `json:"eloRating"`
	KFactor           float64    `json:"kFactor"`
	ConfidenceScore   float64    `json:"confidenceScore"`
	RankingScore      float64    `json:"rankingScore"`
}

type cardListResponse struct {
	Items      []cardResponse `json:"items"`
	NextCursor *string        `json:"nextCursor,omitempty"`
}

type swipeRequest struct {
	Like *bool `json:"like"`
}

type matchupRequest struct {
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId"`
}

type matchupResponse struct {
	Winner cardResponse `json:"winner"`
	Loser  cardResponse `json:"loser"`
}

type nextMatchupResponse struct {
	CardA cardResponse `json:"cardA"`
	CardB cardResponse `json:"cardB"`
}

type rankingEntry struct {
	Rank int `json:"rank"`
	cardResponse
}

type rankingsResponse struct {
	Items []rankingEntry `json:"items"`
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters, err := buildCardFilters(query)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	result, err := s.repo.Cards.List(r.Context(), filters)
	if err != nil {
		s.logger.Printf("list cards error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list cards")
		return
	}

	items := make([]cardResponse, 0, len(result.Items))
	for _, card := range result.Items {
		items = append(items, toCardResponse(card))
	}

	resp := cardListResponse{
		Items: items,
	}
	if result.NextCursor != nil {
		resp.NextCursor = result.NextCursor
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func buildCardFilters(query url.Values) (repository.CardListFilters, error) {
	var filters repository.CardListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("minInteractions")); val != "" {
		min, err := strconv.ParseInt(val, 10, 64)
		if err != nil || min < 0 {
			return filters, fmt.Errorf("invalid minInteractions value")
		}
		filters.MinInteractions = &min
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	var req cardCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required")
		return
	}

	kFactor := req.KFactor
	if kFactor == nil {
		kFactor = &s.cfg.DefaultKFactor
	}

	card, err := domain.NewCard(domain.NewCardParams{
		ID:         uuid.NewString(),
		Title:      title,
		EloRating:  req.EloRating,
		EloKFactor: kFactor,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRating):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "eloRating must be a finite number")
		case errors.Is(err, domain.ErrInvalidKFactor):
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kFactor must be a positive finite number")
		default:
			s.logger.Printf("build card error: %v", err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create card")
		}
		return
	}

	stored, err := s.repo.Cards.Create(r.Context(), card)
	if err != nil {
		s.logger.Printf("create card error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create card")
		return
	}

	location := fmt.Sprintf("/cards/%s", url.PathEscape(stored.ID))
	w.Header().Set("Location", location)
	s.respondJSON(w, http.StatusCreated, toCardResponse(stored))
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "missing id parameter")
		return
	}

	card, err := s.repo.Cards.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("get card error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch card")
		return
	}
	s.respondJSON(w, http.StatusOK, toCardResponse(card))
}

func (s *Server) handleSwipe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "missing id parameter")
		return
	}

	var req swipeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Like == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "like is required")
		return
	}

	card, err := s.repo.Cards.RecordSwipe(r.Context(), id, *req.Like)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("record swipe error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record swipe")
		return
	}
	s.respondJSON(w, http.StatusOK, toCardResponse(card))
}

func (s *Server) handleNextMatchup(w http.ResponseWriter, r *http.Request) {
	cardA, cardB, err := s.scheduler.NextPair(r.Context())
	if err != nil {
		if errors.Is(err, matchup.ErrNotEnoughCards) {
			s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Need at least two cards to schedule a matchup")
			return
		}
		s.logger.Printf("next matchup error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to schedule matchup")
		return
	}

	resp := nextMatchupResponse{
		CardA: toCardResponse(cardA),
		CardB: toCardResponse(cardB),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitMatchup(w http.ResponseWriter, r *http.Request) {
	var req matchupRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	winnerID := strings.TrimSpace(req.WinnerID)
	loserID := strings.TrimSpace(req.LoserID)
	if winnerID == "" || loserID == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "winnerId and loserId are required")
		return
	}
	if winnerID == loserID {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "winnerId and loserId must differ")
		return
	}

	result, err := s.scheduler.Judge(r.Context(), winnerID, loserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("submit matchup error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to apply matchup")
		return
	}

	resp := matchupResponse{
		Winner: toCardResponse(result.Winner),
		Loser:  toCardResponse(result.Loser),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRankings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if val := strings.TrimSpace(r.URL.Query().Get("limit")); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid limit value")
			return
		}
		limit = parsed
	}

	cards, err := s.repo.Cards.Rankings(r.Context(), limit)
	if err != nil {
		s.logger.Printf("rankings error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch rankings")
		return
	}

	items := make([]rankingEntry, 0, len(cards))
	for i, card := range cards {
		items = append(items, rankingEntry{
			Rank:         i + 1,
			cardResponse: toCardResponse(card),
		})
	}
	s.respondJSON(w, http.StatusOK, rankingsResponse{Items: items})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func toCardResponse(card domain.Card) cardResponse {
	return cardResponse{
		ID:                card.ID,
		Title:             card.Title,
		CreatedAt:         card.CreatedAt,
		UpdatedAt:         card.UpdatedAt,
		LikesCount:        card.LikesCount,
		DislikesCount:     card.DislikesCount,
		TotalInteractions: card.TotalInteractions,
		LastInteractionAt: card.LastInteractionAt,
		EloRating:         card.EloRating,
		KFactor:           card.EloKFactor,
		ConfidenceScore:   card.ConfidenceScore,
		RankingScore:      card.RankingScore(),
	}
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token == s.cfg.AuthToken
}
