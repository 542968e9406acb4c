package routehandlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/coreybb/quire/assembly"
	"github.com/coreybb/quire/datastore"
	"github.com/coreybb/quire/ebook"
	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/ordering"
	"github.com/coreybb/quire/webutil"
)

const (
	paramID        = "id"
	paramPostID    = "postID"
	paramChapterID = "chapterID"
)

type ProjectHandler struct {
	Projects  *datastore.ProjectRepository
	Posts     *datastore.PostRepository
	Items     *datastore.ProjectPostRepository
	Chapters  *datastore.ChapterRepository
	Assembler *assembly.Assembler
}

func NewProjectHandler(
	projects *datastore.ProjectRepository,
	posts *datastore.PostRepository,
	items *datastore.ProjectPostRepository,
	chapters *datastore.ChapterRepository,
	assembler *assembly.Assembler,
) *ProjectHandler {
	return &ProjectHandler{Projects: projects, Posts: posts, Items: items, Chapters: chapters, Assembler: assembler}
}

type projectLoader interface {
	GetProjectByID(ctx context.Context, projectID string) (*models.Project, error)
}

// requireOwnedProject resolves the {id} route parameter to a project owned by
// the authenticated user.
func requireOwnedProject(r *http.Request, projects projectLoader) (*models.User, *models.Project, error) {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return nil, nil, err
	}
	project, err := projects.GetProjectByID(r.Context(), chi.URLParam(r, paramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, webutil.ErrNotFoundWrap("Project not found", err)
		}
		return nil, nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project.UserID != user.ID {
		return nil, nil, webutil.ErrForbidden("Not authorized to access this project")
	}
	return user, project, nil
}

// orderingError maps reorder validation failures to 400s.
func orderingError(err error) error {
	if errors.Is(err, ordering.ErrInvalidReorder) || errors.Is(err, ordering.ErrMixedBuckets) {
		return webutil.ErrBadRequestWrap(err.Error(), err)
	}
	return err
}

type createProjectRequest struct {
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	PostIDs     []string `json:"postIds"`
}

type projectDetail struct {
	models.Project
	Chapters []models.Chapter            `json:"chapters"`
	Posts    []models.ProjectPostContent `json:"posts"`
}

func (h *ProjectHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) error {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req createProjectRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return webutil.ErrBadRequest("Title is required")
	}

	seen := make(map[string]bool, len(req.PostIDs))
	postIDs := make([]string, 0, len(req.PostIDs))
	for _, id := range req.PostIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		post, err := h.Posts.GetPostByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return webutil.ErrBadRequest(fmt.Sprintf("Post %s not found", id))
			}
			return fmt.Errorf("failed to load post %s: %w", id, err)
		}
		if post.UserID != user.ID {
			return webutil.ErrForbidden("Cannot add another author's post")
		}
		postIDs = append(postIDs, id)
	}

	project := models.Project{UserID: user.ID, Title: title, Description: req.Description}
	if err := h.Projects.CreateProject(r.Context(), &project, postIDs); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, project)
	return nil
}

func (h *ProjectHandler) HandleGetProjects(w http.ResponseWriter, r *http.Request) error {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return err
	}
	projects, err := h.Projects.GetProjectsByUserID(r.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("failed to retrieve projects for user %s: %w", user.ID, err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, projects)
	return nil
}

func (h *ProjectHandler) HandleGetProject(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	chapters, err := h.Chapters.GetChaptersForProject(r.Context(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to retrieve chapters: %w", err)
	}
	posts, err := h.Items.GetProjectPosts(r.Context(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to retrieve project posts: %w", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, projectDetail{Project: *project, Chapters: chapters, Posts: posts})
	return nil
}

type updateProjectRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (h *ProjectHandler) HandleUpdateProject(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	var req updateProjectRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}

	title := project.Title
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
		if title == "" {
			return webutil.ErrBadRequest("Title cannot be empty")
		}
	}
	status := project.Status
	if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
		status = strings.TrimSpace(*req.Status)
	}

	if err := h.Projects.UpdateProjectSettings(r.Context(), project.ID, title, req.Description, status); err != nil {
		return fmt.Errorf("failed to update project %s: %w", project.ID, err)
	}

	updated, err := h.Projects.GetProjectByID(r.Context(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to reload project %s: %w", project.ID, err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, updated)
	return nil
}

func (h *ProjectHandler) HandleAddPost(w http.ResponseWriter, r *http.Request) error {
	user, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	var req struct {
		PostID string `json:"postId"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.PostID == "" {
		return webutil.ErrBadRequest("postId is required")
	}

	post, err := h.Posts.GetPostByID(r.Context(), req.PostID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webutil.ErrNotFoundWrap("Post not found", err)
		}
		return fmt.Errorf("failed to load post %s: %w", req.PostID, err)
	}
	if post.UserID != user.ID {
		return webutil.ErrForbidden("Cannot add another author's post")
	}

	item, err := h.Items.AddPost(r.Context(), project.ID, post.ID)
	if err != nil {
		if errors.Is(err, datastore.ErrAlreadyInProject) {
			return webutil.ErrConflict("Post is already in this project")
		}
		return fmt.Errorf("failed to add post to project: %w", err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, item)
	return nil
}

type reorderRequest struct {
	Items []models.OrderMove `json:"items"`
}

func (h *ProjectHandler) HandleReorderPosts(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	var req reorderRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.Items.ReorderPosts(r.Context(), project.ID, req.Items); err != nil {
		return orderingError(err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
	return nil
}

func (h *ProjectHandler) HandleAssignPost(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	var req struct {
		ChapterID *string `json:"chapterId"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.ChapterID != nil && *req.ChapterID == "" {
		req.ChapterID = nil
	}

	itemID := chi.URLParam(r, paramPostID)
	if err := h.Items.AssignPost(r.Context(), project.ID, itemID, req.ChapterID); err != nil {
		return err
	}

	item, err := h.Items.GetProjectPost(r.Context(), project.ID, itemID)
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, item)
	return nil
}

func (h *ProjectHandler) HandleSetIncludeInBook(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}

	var req struct {
		IncludeInBook *bool `json:"includeInBook"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.IncludeInBook == nil {
		return webutil.ErrBadRequest("includeInBook is required")
	}

	itemID := chi.URLParam(r, paramPostID)
	if err := h.Items.SetIncludeInBook(r.Context(), project.ID, itemID, *req.IncludeInBook); err != nil {
		return err
	}

	item, err := h.Items.GetProjectPost(r.Context(), project.ID, itemID)
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, item)
	return nil
}

func (h *ProjectHandler) HandleRemovePost(w http.ResponseWriter, r *http.Request) error {
	_, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}
	if err := h.Items.RemovePost(r.Context(), project.ID, chi.URLParam(r, paramPostID)); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// HandlePreview returns the assembled document tree, or the print layout
// when called with ?format=html.
func (h *ProjectHandler) HandlePreview(w http.ResponseWriter, r *http.Request) error {
	user, project, err := requireOwnedProject(r, h.Projects)
	if err != nil {
		return err
	}
	tree, err := h.Assembler.Assemble(r.Context(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to assemble preview for project %s: %w", project.ID, err)
	}

	if r.URL.Query().Get("format") != "html" {
		webutil.RespondWithJSON(w, http.StatusOK, tree)
		return nil
	}

	author := user.Name
	if author == "" {
		author = user.Email
	}
	page, err := ebook.BuildPrintHTML(tree, ebook.MetadataFor(project, author))
	if err != nil {
		return fmt.Errorf("failed to render preview for project %s: %w", project.ID, err)
	}
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeHTMLUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
	return nil
}
