package routehandlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/coreybb/quire/datastore"
	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/webutil"
)

type ChapterHandler struct {
	Projects *datastore.ProjectRepository
	Chapters *datastore.ChapterRepository
}

func NewChapterHandler(projects *datastore.ProjectRepository, chapters *datastore.ChapterRepository) *ChapterHandler {
	return &ChapterHandler{Projects: projects, Chapters: chapters}
}

func (h *ChapterHandler) HandleCreateChapter(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	var req struct {
		Title   string  `json:"title"`
		Content *string `json:"content"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return webutil.ErrBadRequest("Title is required")
	}

	chapter := models.Chapter{ProjectID: project.ID, Title: title, Content: req.Content}
	if err := h.Chapters.CreateChapter(r.Context(), &chapter); err != nil {
		return fmt.Errorf("failed to create chapter: %w", err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, chapter)
	return nil
}

func (h *ChapterHandler) HandleReorderChapters(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.Chapters.ReorderChapters(r.Context(), project.ID, req.Items); err != nil {
		return orderingError(err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
	return nil
}

func (h *ChapterHandler) HandleDeleteChapter(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}
	if err := h.Chapters.DeleteChapter(r.Context(), project.ID, chi.URLParam(r, paramChapterID)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
