package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rh "github.com/coreybb/quire/route-handlers"
	"github.com/coreybb/quire/webutil"
)

const (
	apiBasePath      = "/api"
	usersBasePath    = "/users"
	postsBasePath    = "/posts"
	projectsBasePath = "/projects"
	generatedPath    = "/generated"
	schedulerPath    = "/scheduler"
)

const (
	postsSubPath    = "/posts"
	chaptersSubPath = "/chapters"
	orderSubPath    = "/order"
)

const (
	paramID        = "id"
	paramPostID    = "postID"
	paramChapterID = "chapterID"
)

// DefaultRequestTimeout bounds ordinary API requests. Synchronous generation
// runs under the render timeout instead.
const DefaultRequestTimeout = 60 * time.Second

// Handlers groups everything SetupRoutes wires.
type Handlers struct {
	Users      *rh.UserHandler
	Posts      *rh.PostHandler
	Projects   *rh.ProjectHandler
	Chapters   *rh.ChapterHandler
	Generation *rh.GenerationHandler
	Artifacts  *rh.ArtifactHandler
	Tick       http.HandlerFunc
	Auth       UserFinder

	GenerateTimeout time.Duration
}

func SetupRoutes(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(SetHeader(webutil.HeaderContentType, webutil.ContentTypeJSONUTF8))

	auth := RequireAuth(h.Auth)

	generateTimeout := h.GenerateTimeout
	if generateTimeout < DefaultRequestTimeout {
		generateTimeout = DefaultRequestTimeout
	}

	r.Route(apiBasePath, func(r chi.Router) {
		r.With(middleware.Timeout(DefaultRequestTimeout)).
			Post(usersBasePath, webutil.MakeHandler(h.Users.HandleCreateUser))

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.With(middleware.Timeout(DefaultRequestTimeout)).Get("/me", webutil.MakeHandler(h.Users.HandleGetMe))
			configurePostRoutes(r, h.Posts)
			configureProjectRoutes(r, h.Projects, h.Chapters, h.Generation, generateTimeout)
		})
	})

	r.With(auth).Get(pathWithParam(generatedPath, "filename"), webutil.MakeHandler(h.Artifacts.HandleDownload))

	if h.Tick != nil {
		r.Post(schedulerPath+"/tick", h.Tick)
	}

	r.Get("/healthz", handleHealthCheck)

	return r
}

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

// --- Post Routes ---
func configurePostRoutes(r chi.Router, handler *rh.PostHandler) {
	r.Route(postsBasePath, func(r chi.Router) {
		r.Use(middleware.Timeout(DefaultRequestTimeout))
		r.Get("/", webutil.MakeHandler(handler.HandleGetPosts))
		r.Post("/", webutil.MakeHandler(handler.HandleCreatePost))
	})
}

// --- Project Routes ---
func configureProjectRoutes(r chi.Router, projects *rh.ProjectHandler, chapters *rh.ChapterHandler, generation *rh.GenerationHandler, generateTimeout time.Duration) {
	r.Route(projectsBasePath, func(r chi.Router) {
		r.With(middleware.Timeout(DefaultRequestTimeout)).Get("/", webutil.MakeHandler(projects.HandleGetProjects))
		r.With(middleware.Timeout(DefaultRequestTimeout)).Post("/", webutil.MakeHandler(projects.HandleCreateProject))

		r.Route(pathWithParam("", paramID), func(r chi.Router) {
			// Synchronous generation may hold the request for the whole render.
			r.With(middleware.Timeout(generateTimeout)).Post("/generate", webutil.MakeHandler(generation.HandleGenerate))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(DefaultRequestTimeout))

				r.Get("/", webutil.MakeHandler(projects.HandleGetProject))
				r.Patch("/", webutil.MakeHandler(projects.HandleUpdateProject))
				r.Get("/preview", webutil.MakeHandler(projects.HandlePreview))
				r.Get("/generate", webutil.MakeHandler(generation.HandleGetStatus))

				// Nested: posts attached to the project, addressed by project-post id
				r.Route(postsSubPath, func(r chi.Router) {
					r.Post("/", webutil.MakeHandler(projects.HandleAddPost))
					r.Put(orderSubPath, webutil.MakeHandler(projects.HandleReorderPosts))
					r.Route(pathWithParam("", paramPostID), func(r chi.Router) {
						r.Put("/chapter", webutil.MakeHandler(projects.HandleAssignPost))
						r.Put("/include", webutil.MakeHandler(projects.HandleSetIncludeInBook))
						r.Delete("/", webutil.MakeHandler(projects.HandleRemovePost))
					})
				})

				// Nested: chapters
				r.Route(chaptersSubPath, func(r chi.Router) {
					r.Post("/", webutil.MakeHandler(chapters.HandleCreateChapter))
					r.Put(orderSubPath, webutil.MakeHandler(chapters.HandleReorderChapters))
					r.Delete(pathWithParam("", paramChapterID), webutil.MakeHandler(chapters.HandleDeleteChapter))
				})
			})
		})
	})
}

// --- Utility Functions ---

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// SetHeader is a middleware to set a response header.
func SetHeader(key, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(key, value)
			next.ServeHTTP(w, r)
		})
	}
}
