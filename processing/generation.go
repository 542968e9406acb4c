// Package processing drives a project through assembly, rendering and
// storage while keeping its persisted generation status consistent.
package processing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coreybb/quire/ebook"
	"github.com/coreybb/quire/models"
)

const (
	DefaultLeaseTimeout = 10 * time.Minute

	// LeaseExpiredMessage is recorded on projects whose run was abandoned.
	LeaseExpiredMessage = "generation lease expired"
)

// ProjectStore is the slice of the content store the state machine writes.
type ProjectStore interface {
	GetProjectByID(ctx context.Context, projectID string) (*models.Project, error)
	BeginGeneration(ctx context.Context, projectID string, status models.GenerationStatus, token string, startedAt, staleBefore time.Time) (bool, error)
	StartRendering(ctx context.Context, projectID, token string, status models.GenerationStatus, startedAt time.Time) (bool, error)
	CompleteGeneration(ctx context.Context, projectID, token string, format models.BookFormat, url string, completedAt time.Time) (bool, error)
	FailGeneration(ctx context.Context, projectID, token, message string, failedAt time.Time) (bool, error)
}

type DocumentAssembler interface {
	Assemble(ctx context.Context, projectID string) (*models.DocumentTree, error)
}

type ArtifactSaver interface {
	Save(ctx context.Context, projectID string, format models.BookFormat, data []byte) (string, error)
	URLFor(filename string) string
}

// AuthorLookup resolves the byline printed in generated books.
type AuthorLookup interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// GenerationResult is returned to clients once a request is accepted.
type GenerationResult struct {
	Success bool                    `json:"success"`
	URL     string                  `json:"url,omitempty"`
	Status  models.GenerationStatus `json:"status,omitempty"`
	Message string                  `json:"message"`
}

type GenerationService struct {
	Projects  ProjectStore
	Assembler DocumentAssembler
	Renderers ebook.Renderers
	Artifacts ArtifactSaver
	Authors   AuthorLookup
	Pool      *WorkerPool

	LeaseTimeout time.Duration

	// Publisher and Language override the book metadata defaults when set.
	Publisher string
	Language  string

	now func() time.Time
}

func NewGenerationService(
	projects ProjectStore,
	assembler DocumentAssembler,
	renderers ebook.Renderers,
	artifacts ArtifactSaver,
	authors AuthorLookup,
	pool *WorkerPool,
	leaseTimeout time.Duration,
) *GenerationService {
	if leaseTimeout <= 0 {
		leaseTimeout = DefaultLeaseTimeout
	}
	return &GenerationService{
		Projects:     projects,
		Assembler:    assembler,
		Renderers:    renderers,
		Artifacts:    artifacts,
		Authors:      authors,
		Pool:         pool,
		LeaseTimeout: leaseTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ParseFormat validates a client-supplied format.
func ParseFormat(raw string) (models.BookFormat, error) {
	format, ok := models.IsValidBookFormat(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
	}
	return format, nil
}

// LoadOwnedProject returns the project if userID owns it, ErrForbidden if
// someone else does, and a wrapped sql.ErrNoRows if it does not exist.
func (s *GenerationService) LoadOwnedProject(ctx context.Context, userID, projectID string) (*models.Project, error) {
	project, err := s.Projects.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrForbidden
	}
	return project, nil
}

// begin runs the shared guards and claims the project.
func (s *GenerationService) begin(ctx context.Context, userID, projectID string, format models.BookFormat, status models.GenerationStatus) (*models.Project, string, error) {
	project, err := s.LoadOwnedProject(ctx, userID, projectID)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.Renderers.For(format); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	token := uuid.NewString()
	startedAt := s.now()
	ok, err := s.Projects.BeginGeneration(ctx, projectID, status, token, startedAt, startedAt.Add(-s.LeaseTimeout))
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrGenerationInProgress
	}
	return project, token, nil
}

// Generate renders the project synchronously and returns once the artifact is
// stored or the failure recorded. Once claimed, the run no longer follows the
// caller's cancellation; renderers bound it with their own timeouts.
func (s *GenerationService) Generate(ctx context.Context, userID, projectID string, format models.BookFormat) (*GenerationResult, error) {
	project, token, err := s.begin(ctx, userID, projectID, format, models.GeneratingStatusFor(format))
	if err != nil {
		return nil, err
	}

	url, err := s.run(context.WithoutCancel(ctx), project, format, token)
	if err != nil {
		return nil, err
	}
	return &GenerationResult{
		Success: true,
		URL:     url,
		Status:  models.GenerationStatusCompleted,
		Message: fmt.Sprintf("%s generated successfully", strings.ToUpper(string(format))),
	}, nil
}

// Enqueue claims the project as queued and hands the run to the worker pool.
func (s *GenerationService) Enqueue(ctx context.Context, userID, projectID string, format models.BookFormat) (*GenerationResult, error) {
	if s.Pool == nil {
		return s.Generate(ctx, userID, projectID, format)
	}

	project, token, err := s.begin(ctx, userID, projectID, format, models.GenerationStatusQueued)
	if err != nil {
		return nil, err
	}

	job := func(workerCtx context.Context) {
		s.runQueued(workerCtx, project, format, token)
	}
	if err := s.Pool.Submit(job); err != nil {
		s.fail(ctx, project.ID, token, format, err)
		return nil, err
	}

	slog.InfoContext(ctx, "generation queued", "project_id", project.ID, "format", format)
	return &GenerationResult{
		Success: true,
		Status:  models.GenerationStatusQueued,
		Message: fmt.Sprintf("%s generation queued", strings.ToUpper(string(format))),
	}, nil
}

func (s *GenerationService) runQueued(ctx context.Context, project *models.Project, format models.BookFormat, token string) {
	ok, err := s.Projects.StartRendering(ctx, project.ID, token, models.GeneratingStatusFor(format), s.now())
	if err != nil {
		s.fail(ctx, project.ID, token, format, err)
		return
	}
	if !ok {
		slog.WarnContext(ctx, "skipping queued generation that no longer owns the project",
			"project_id", project.ID, "format", format)
		return
	}
	_, _ = s.run(ctx, project, format, token)
}

// run assembles, renders and stores one artifact, then records the outcome.
func (s *GenerationService) run(ctx context.Context, project *models.Project, format models.BookFormat, token string) (string, error) {
	start := time.Now()
	slog.InfoContext(ctx, "generation started", "project_id", project.ID, "format", format)

	url, err := s.produce(ctx, project, format)
	if err != nil {
		s.fail(ctx, project.ID, token, format, err)
		return "", &GenerationError{Format: format, Err: err}
	}

	ok, err := s.Projects.CompleteGeneration(context.WithoutCancel(ctx), project.ID, token, format, url, s.now())
	if err != nil {
		err = fmt.Errorf("record completed generation: %w", err)
		s.fail(ctx, project.ID, token, format, err)
		return "", &GenerationError{Format: format, Err: err}
	}
	if !ok {
		slog.WarnContext(ctx, "generation finished after its lease was taken over",
			"project_id", project.ID, "format", format, "url", url)
	}

	slog.InfoContext(ctx, "generation completed",
		"project_id", project.ID,
		"format", format,
		"url", url,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return url, nil
}

func (s *GenerationService) produce(ctx context.Context, project *models.Project, format models.BookFormat) (string, error) {
	tree, err := s.Assembler.Assemble(ctx, project.ID)
	if err != nil {
		return "", err
	}

	renderer, err := s.Renderers.For(format)
	if err != nil {
		return "", err
	}

	meta := ebook.MetadataFor(project, s.author(ctx, project.UserID))
	if s.Publisher != "" {
		meta.Publisher = s.Publisher
	}
	if s.Language != "" {
		meta.Language = s.Language
	}

	data, err := renderer.Render(ctx, tree, meta)
	if err != nil {
		return "", err
	}

	filename, err := s.Artifacts.Save(ctx, project.ID, format, data)
	if err != nil {
		return "", err
	}
	return s.Artifacts.URLFor(filename), nil
}

func (s *GenerationService) author(ctx context.Context, userID string) string {
	if s.Authors == nil {
		return ""
	}
	user, err := s.Authors.GetUserByID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "could not resolve author for book metadata", "user_id", userID, "error", err)
		return ""
	}
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}

// fail records err on the project. Artifact URLs are left as they were.
func (s *GenerationService) fail(ctx context.Context, projectID, token string, format models.BookFormat, cause error) {
	slog.ErrorContext(ctx, "generation failed", "project_id", projectID, "format", format, "error", cause)

	ok, err := s.Projects.FailGeneration(context.WithoutCancel(ctx), projectID, token, cause.Error(), s.now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to record generation failure", "project_id", projectID, "error", err)
		return
	}
	if !ok {
		slog.WarnContext(ctx, "generation failure not recorded, run no longer owns the project", "project_id", projectID)
	}
}

// Status returns the client view of the project's generation state.
func (s *GenerationService) Status(ctx context.Context, userID, projectID string) (models.GenerationState, error) {
	project, err := s.LoadOwnedProject(ctx, userID, projectID)
	if err != nil {
		return models.GenerationState{}, err
	}
	return project.GenerationState(), nil
}
