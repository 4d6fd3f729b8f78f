package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/custodia-labs/hivemind/internal/core/domain"
	"github.com/custodia-labs/hivemind/internal/core/ports/driving"
)

// SyncHandler handles sync trigger, status and cancel endpoints.
type SyncHandler struct {
	coordinator driving.SyncCoordinator
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(coordinator driving.SyncCoordinator) *SyncHandler {
	return &SyncHandler{coordinator: coordinator}
}

// Register sets up sync routes.
func (h *SyncHandler) Register(router fiber.Router) {
	router.Post("/sync", h.Trigger)
	router.Get("/sync/status", h.Status)
	router.Delete("/sync", h.Cancel)
}

// Trigger enqueues sync jobs for the workspace's connected providers.
func (h *SyncHandler) Trigger(c fiber.Ctx) error {
	ws := c.Get(headerWorkspace)
	if ws == "" {
		return badRequest(c, "missing "+headerWorkspace+" header")
	}

	var body struct {
		Providers []string   `json:"providers"`
		Type      string     `json:"type"`
		Since     *time.Time `json:"since"`
		Targets   []string   `json:"targets"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	syncType, err := domain.ParseSyncType(body.Type)
	if err != nil {
		return badRequest(c, "unknown sync type: "+body.Type)
	}

	opts := domain.SyncOptions{
		Type:        syncType,
		Since:       body.Since,
		TargetItems: body.Targets,
	}
	for _, p := range body.Providers {
		provider, err := domain.ParseProvider(p)
		if err != nil {
			return badRequest(c, "unknown provider: "+p)
		}
		opts.Providers = append(opts.Providers, provider)
	}

	jobIDs, err := h.coordinator.TriggerSync(c.Context(), ws, userID(c), opts)
	if err != nil {
		if errors.Is(err, domain.ErrNoTargets) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"jobIds": jobIDs})
}

// Status reports per-provider job state for the workspace.
func (h *SyncHandler) Status(c fiber.Ctx) error {
	ws := c.Get(headerWorkspace)
	if ws == "" {
		return badRequest(c, "missing "+headerWorkspace+" header")
	}

	status, err := h.coordinator.GetSyncStatus(c.Context(), ws)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(status)
}

// Cancel removes waiting jobs, optionally for one provider.
func (h *SyncHandler) Cancel(c fiber.Ctx) error {
	ws := c.Get(headerWorkspace)
	if ws == "" {
		return badRequest(c, "missing "+headerWorkspace+" header")
	}

	var provider *domain.Provider
	if p := c.Query("provider"); p != "" {
		parsed, err := domain.ParseProvider(p)
		if err != nil {
			return badRequest(c, "unknown provider: "+p)
		}
		provider = &parsed
	}

	cancelled, err := h.coordinator.CancelSync(c.Context(), ws, provider)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			return badRequest(c, err.Error())
		}
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"cancelled": cancelled})
}
