package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coreybb/quire/models"
	"github.com/coreybb/quire/ordering"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, user_id, title, description, status, generation_status, generation_error,
	generation_started_at, generation_token, pdf_url, epub_url, last_generated_at, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var (
		p           models.Project
		description sql.NullString
		genStatus   sql.NullString
		genError    sql.NullString
		genStarted  sql.NullTime
		genToken    sql.NullString
		pdfURL      sql.NullString
		epubURL     sql.NullString
		lastGen     sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &description, &p.Status, &genStatus, &genError,
		&genStarted, &genToken, &pdfURL, &epubURL, &lastGen, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = stringPtr(description)
	p.GenerationStatus = models.GenerationStatus(genStatus.String)
	p.GenerationError = stringPtr(genError)
	p.GenerationStartedAt = timePtr(genStarted)
	p.GenerationToken = genToken.String
	p.PDFURL = stringPtr(pdfURL)
	p.EPUBURL = stringPtr(epubURL)
	p.LastGeneratedAt = timePtr(lastGen)
	return &p, nil
}

// CreateProject inserts a project and attaches the given posts to its
// unassigned bucket in the order supplied.
func (r *ProjectRepository) CreateProject(ctx context.Context, project *models.Project, postIDs []string) error {
	if project.ID == "" {
		project.ID = newRowID()
	}
	if project.Status == "" {
		project.Status = models.DefaultProjectStatus
	}
	ts := now()
	project.CreatedAt = ts
	project.UpdatedAt = ts

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin project tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO book_projects (id, user_id, title, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.ExecContext(ctx, query, project.ID, project.UserID, project.Title,
		nullableString(project.Description), project.Status, project.CreatedAt, project.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	var orders []int
	for _, postID := range postIDs {
		next := ordering.NextOrder(orders)
		if _, err := tx.ExecContext(ctx, insertProjectPostSQL,
			newRowID(), project.ID, postID, nil, next, true, ts); err != nil {
			return fmt.Errorf("failed to attach post %s to project: %w", postID, err)
		}
		orders = append(orders, next)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetProjectByID(ctx context.Context, projectID string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM book_projects WHERE id = $1`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get project by ID: %w", err)
	}
	return project, nil
}

func (r *ProjectRepository) GetProjectsByUserID(ctx context.Context, userID string) ([]models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM book_projects
		WHERE user_id = $1
		ORDER BY updated_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects by user ID: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

// UpdateProjectSettings changes title and status. A nil description leaves
// the stored one untouched.
func (r *ProjectRepository) UpdateProjectSettings(ctx context.Context, projectID, title string, description *string, status string) error {
	query := `
		UPDATE book_projects
		SET title = $2, description = COALESCE($3, description), status = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, projectID, title, nullableString(description), status, now())
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", projectID, err)
	}
	return requireAffected(res, "project not found")
}

// BeginGeneration moves a project into a busy status if, and only if, it is
// not already busy. A busy status whose lease started before staleBefore is
// treated as abandoned; one without a start time stays busy until
// ReclaimStaleGenerations fails it. The check and the write happen in one
// statement, so two concurrent callers cannot both win. It returns false when
// the project is busy.
func (r *ProjectRepository) BeginGeneration(ctx context.Context, projectID string, status models.GenerationStatus, token string, startedAt, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE book_projects
		SET generation_status = $2, generation_error = NULL, generation_started_at = $3,
		    generation_token = $4, updated_at = $3
		WHERE id = $1
		  AND (generation_status IS NULL
		       OR generation_status NOT IN ($5, $6, $7)
		       OR generation_started_at < $8)
	`
	res, err := r.db.ExecContext(ctx, query, projectID, string(status), startedAt.UTC(), token,
		string(models.GenerationStatusQueued),
		string(models.GenerationStatusGeneratingPDF),
		string(models.GenerationStatusGeneratingEPUB),
		staleBefore.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to begin generation for project %s: %w", projectID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}
	if _, err := r.GetProjectByID(ctx, projectID); err != nil {
		return false, err
	}
	return false, nil
}

// StartRendering moves a queued run into its generating status and renews the
// lease. It returns false if the run no longer owns the project.
func (r *ProjectRepository) StartRendering(ctx context.Context, projectID, token string, status models.GenerationStatus, startedAt time.Time) (bool, error) {
	query := `
		UPDATE book_projects
		SET generation_status = $3, generation_started_at = $4, updated_at = $4
		WHERE id = $1 AND generation_token = $2 AND generation_status = $5
	`
	res, err := r.db.ExecContext(ctx, query, projectID, token, string(status), startedAt.UTC(),
		string(models.GenerationStatusQueued))
	if err != nil {
		return false, fmt.Errorf("failed to start rendering for project %s: %w", projectID, err)
	}
	return affectedOne(res)
}

// CompleteGeneration records a successful artifact for the run holding token.
func (r *ProjectRepository) CompleteGeneration(ctx context.Context, projectID, token string, format models.BookFormat, url string, completedAt time.Time) (bool, error) {
	urlColumn := "pdf_url"
	if format == models.BookFormatEPUB {
		urlColumn = "epub_url"
	}
	query := `
		UPDATE book_projects
		SET generation_status = $3, generation_error = NULL, ` + urlColumn + ` = $4,
		    last_generated_at = $5, generation_started_at = NULL, updated_at = $5
		WHERE id = $1 AND generation_token = $2
	`
	res, err := r.db.ExecContext(ctx, query, projectID, token,
		string(models.GenerationStatusCompleted), url, completedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to complete generation for project %s: %w", projectID, err)
	}
	return affectedOne(res)
}

// FailGeneration records a failed run. Artifact URLs are left untouched so a
// previous artifact stays downloadable.
func (r *ProjectRepository) FailGeneration(ctx context.Context, projectID, token, message string, failedAt time.Time) (bool, error) {
	query := `
		UPDATE book_projects
		SET generation_status = $3, generation_error = $4, generation_started_at = NULL, updated_at = $5
		WHERE id = $1 AND generation_token = $2
	`
	res, err := r.db.ExecContext(ctx, query, projectID, token,
		string(models.GenerationStatusFailed), message, failedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to record generation failure for project %s: %w", projectID, err)
	}
	return affectedOne(res)
}

// ReclaimStaleGenerations fails every busy project whose lease started before
// cutoff and returns how many were reclaimed. Busy rows missing a start time
// are judged by their last update.
func (r *ProjectRepository) ReclaimStaleGenerations(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	query := `
		UPDATE book_projects
		SET generation_status = $1, generation_error = $2, generation_started_at = NULL, updated_at = $3
		WHERE generation_status IN ($4, $5, $6)
		  AND COALESCE(generation_started_at, updated_at) < $7
	`
	res, err := r.db.ExecContext(ctx, query,
		string(models.GenerationStatusFailed), message, now(),
		string(models.GenerationStatusQueued),
		string(models.GenerationStatusGeneratingPDF),
		string(models.GenerationStatusGeneratingEPUB),
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale generations: %w", err)
	}
	return res.RowsAffected()
}

func affectedOne(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func requireAffected(res sql.Result, notFoundMsg string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", notFoundMsg, sql.ErrNoRows)
	}
	return nil
}
