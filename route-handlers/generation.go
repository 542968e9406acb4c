package routehandlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/coreybb/quire/processing"
	"github.com/coreybb/quire/webutil"
)

type generateRequest struct {
	Format string `json:"format"`
}

type GenerationHandler struct {
	Service *processing.GenerationService
	// Async queues generations on the worker pool and answers 202 instead of
	// rendering inside the request.
	Async bool
}

func NewGenerationHandler(service *processing.GenerationService, async bool) *GenerationHandler {
	return &GenerationHandler{Service: service, Async: async}
}

func (h *GenerationHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) error {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req generateRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	format, err := processing.ParseFormat(req.Format)
	if err != nil {
		return webutil.ErrBadRequestWrap("Invalid format", err)
	}

	projectID := chi.URLParam(r, paramID)
	if h.Async {
		res, err := h.Service.Enqueue(r.Context(), user.ID, projectID, format)
		if err != nil {
			return generationError(err)
		}
		webutil.RespondWithJSON(w, http.StatusAccepted, res)
		return nil
	}

	res, err := h.Service.Generate(r.Context(), user.ID, projectID, format)
	if err != nil {
		return generationError(err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, res)
	return nil
}

func (h *GenerationHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) error {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return err
	}
	state, err := h.Service.Status(r.Context(), user.ID, chi.URLParam(r, paramID))
	if err != nil {
		return generationError(err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, state)
	return nil
}

func generationError(err error) error {
	var genErr *processing.GenerationError
	switch {
	case errors.Is(err, processing.ErrInvalidFormat):
		return webutil.ErrBadRequestWrap("Invalid format", err)
	case errors.Is(err, processing.ErrForbidden):
		return webutil.ErrForbidden("Not authorized to access this project")
	case errors.Is(err, sql.ErrNoRows):
		return webutil.ErrNotFoundWrap("Project not found", err)
	case errors.Is(err, processing.ErrGenerationInProgress):
		return webutil.ErrConflict("Generation already in progress")
	case errors.Is(err, processing.ErrQueueFull):
		return webutil.ErrServiceUnavailable("Generation queue is full, try again later", err)
	case errors.As(err, &genErr):
		return webutil.ErrInternalServerDetails("Generation failed", genErr.Err.Error(), err)
	default:
		return fmt.Errorf("generation request failed: %w", err)
	}
}
