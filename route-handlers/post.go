package routehandlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/coreybb/quire/datastore"
	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/webutil"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

type PostHandler struct {
	Repo *datastore.PostRepository
}

func NewPostHandler(repo *datastore.PostRepository) *PostHandler {
	return &PostHandler{Repo: repo}
}

type createPostRequest struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Content     string `json:"content"`
	Excerpt     string `json:"excerpt"`
	IsPublished bool   `json:"is_published"`
}

func (h *PostHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) error {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return err
	}

	var req createPostRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		return err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return webutil.ErrBadRequest("Title is required")
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(title)
	}

	post := models.Post{
		UserID:      user.ID,
		Title:       title,
		Slug:        slug,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		IsPublished: req.IsPublished,
	}
	if err := h.Repo.CreatePost(r.Context(), &post); err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, post)
	return nil
}

func (h *PostHandler) HandleGetPosts(w http.ResponseWriter, r *http.Request) error {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return err
	}
	posts, err := h.Repo.GetPostsByUserID(r.Context(), user.ID)
	if err != nil {
		return fmt.Errorf("failed to retrieve posts for user %s: %w", user.ID, err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, posts)
	return nil
}

func slugify(title string) string {
	slug := strings.Trim(nonSlugChars.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		return "post"
	}
	return slug
}
