package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driven"
	"github.com/custodia-labs/hivemind/internal/logger"
)

// WebhookHandler ingests push-based updates. Signature verification and
// payload normalization happen in the webhook gateway upstream; what
// arrives here is one already-normalized item event. It goes through
// the same upsert and embedding-enqueue primitives as the sync workers,
// so a webhook update and a later poll of the same external object land
// on the same row.
type WebhookHandler struct {
	items      driven.ItemStore
	embeddings driven.EmbeddingEnqueuer
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(items driven.ItemStore, embeddings driven.EmbeddingEnqueuer) *WebhookHandler {
	return &WebhookHandler{items: items, embeddings: embeddings}
}

// Register sets up webhook routes.
func (h *WebhookHandler) Register(router fiber.Router) {
	router.Post("/webhooks/:provider", h.Ingest)
}

// Ingest upserts one item event and enqueues its embedding.
func (h *WebhookHandler) Ingest(c fiber.Ctx) error {
	provider, err := domain.ParseProvider(c.Params("provider"))
	if err != nil {
		return badRequest(c, "unknown provider: "+c.Params("provider"))
	}

	var body struct {
		WorkspaceID string         `json:"workspace_id"`
		SourceType  string         `json:"source_type"`
		ExternalID  string         `json:"external_id"`
		Title       string         `json:"title"`
		Content     string         `json:"content"`
		URL         string         `json:"url"`
		Metadata    map[string]any `json:"metadata"`
		Importance  float64        `json:"importance"`
		Deleted     bool           `json:"deleted"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.WorkspaceID == "" || body.ExternalID == "" {
		return badRequest(c, "workspace_id and external_id are required")
	}

	sourceType := domain.SourceType(body.SourceType)
	if sourceType.Provider() != provider {
		return badRequest(c, "source_type does not belong to provider "+provider.String())
	}

	if body.Deleted {
		return h.ingestDeletion(c, body.WorkspaceID, sourceType, body.ExternalID)
	}

	item, created, err := h.items.Upsert(c.Context(), body.WorkspaceID, domain.ItemDraft{
		SourceType: sourceType,
		ExternalID: body.ExternalID,
		Title:      body.Title,
		Content:    body.Content,
		URL:        body.URL,
		Metadata:   body.Metadata,
		Importance: domain.ClampScore(body.Importance),
	})
	if err != nil {
		return internalError(c, err)
	}

	if err := h.embeddings.EnqueueEmbedding(c.Context(), domain.EmbeddingJob{
		WorkspaceID: body.WorkspaceID,
		ItemIDs:     []string{item.ID},
	}); err != nil {
		// The item is persisted; the next sync run re-enqueues it.
		logger.Warn("webhook: enqueue embedding for item %s: %v", item.ID, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"itemId":  item.ID,
		"created": created,
	})
}

func (h *WebhookHandler) ingestDeletion(
	c fiber.Ctx, workspaceID string, sourceType domain.SourceType, externalID string,
) error {
	item, err := h.items.GetByIdentity(c.Context(), workspaceID, sourceType, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleting something never synced is a no-op.
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"deleted": false})
		}
		return internalError(c, err)
	}
	if err := h.items.Delete(c.Context(), item.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"deleted": true, "itemId": item.ID})
}
