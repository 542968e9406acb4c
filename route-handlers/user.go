package routehandlers

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/coreybb/quire/datastore"
	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/webutil"
)

type UserHandler struct {
	Repo *datastore.UserRepository
}

func NewUserHandler(repo *datastore.UserRepository) *UserHandler {
	return &UserHandler{Repo: repo}
}

func (h *UserHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := webutil.DecodeJSON(r, &requestData); err != nil {
		return err
	}

	email := strings.TrimSpace(requestData.Email)
	if email == "" {
		return webutil.ErrBadRequest("Email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return webutil.ErrBadRequest("Invalid email address")
	}

	if existing, err := h.Repo.GetUserByEmail(r.Context(), email); err == nil && existing != nil {
		return webutil.ErrConflict("A user with this email already exists")
	}

	newUser := models.User{Email: email, Name: strings.TrimSpace(requestData.Name)}
	if err := h.Repo.CreateUser(r.Context(), &newUser); err != nil {
		return fmt.Errorf("failed to create user %s: %w", email, err)
	}

	webutil.RespondWithJSON(w, http.StatusCreated, newUser)
	return nil
}

// HandleGetMe returns the user resolved from the auth cookie.
func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) error {
	user, err := webutil.RequireUser(r)
	if err != nil {
		return err
	}
	webutil.RespondWithJSON(w, http.StatusOK, user)
	return nil
}
