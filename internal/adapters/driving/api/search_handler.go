package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driving"
)

// SearchHandler handles search, ask and converse endpoints.
type SearchHandler struct {
	search driving.SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(search driving.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// Register sets up search routes.
func (h *SearchHandler) Register(router fiber.Router) {
	router.Post("/search", h.Search)
	router.Post("/ask", h.Ask)
	router.Post("/converse", h.Converse)
}

// Search returns ranked results for a query.
func (h *SearchHandler) Search(c fiber.Ctx) error {
	ws := c.Get(headerWorkspace)
	if ws == "" {
		return badRequest(c, "missing "+headerWorkspace+" header")
	}

	var body struct {
		Query   string   `json:"query"`
		Sources []string `json:"sources"`
		Limit   int      `json:"limit"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	opts := domain.SearchOptions{Limit: body.Limit}
	for _, s := range body.Sources {
		opts.Sources = append(opts.Sources, domain.SourceType(s))
	}

	results, err := h.search.Search(c.Context(), ws, userID(c), body.Query, opts)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return badRequest(c, err.Error())
		}
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"results": resultMaps(results)})
}

// Ask answers a question grounded on search results.
func (h *SearchHandler) Ask(c fiber.Ctx) error {
	ws := c.Get(headerWorkspace)
	if ws == "" {
		return badRequest(c, "missing "+headerWorkspace+" header")
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	answer, err := h.search.Ask(c.Context(), ws, userID(c), body.Question)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return badRequest(c, err.Error())
		}
		return internalError(c, err)
	}
	return c.JSON(answerMap(answer))
}

// Converse answers with prior turns threaded into the LLM call.
func (h *SearchHandler) Converse(c fiber.Ctx) error {
	ws := c.Get(headerWorkspace)
	if ws == "" {
		return badRequest(c, "missing "+headerWorkspace+" header")
	}

	var body struct {
		Question string               `json:"question"`
		History  []domain.ChatMessage `json:"history"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	answer, err := h.search.Converse(c.Context(), ws, userID(c), body.Question, body.History)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return badRequest(c, err.Error())
		}
		return internalError(c, err)
	}
	return c.JSON(answerMap(answer))
}

func answerMap(answer *domain.Answer) fiber.Map {
	return fiber.Map{
		"answer":  answer.Text,
		"sources": resultMaps(answer.Sources),
	}
}

func resultMaps(results []domain.SearchResult) []fiber.Map {
	out := make([]fiber.Map, len(results))
	for i, r := range results {
		out[i] = fiber.Map{
			"id":          r.Item.ID,
			"source_type": r.Item.SourceType,
			"external_id": r.Item.ExternalID,
			"title":       r.Item.Title,
			"url":         r.Item.URL,
			"snippet":     r.Snippet,
			"score":       r.Score,
			"origin":      r.Origin,
			"importance":  r.Item.Importance,
			"updated_at":  r.Item.UpdatedAt,
		}
	}
	return out
}
