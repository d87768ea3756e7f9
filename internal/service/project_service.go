// internal/service/project_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	xlog "reel-editor/internal/log"
	"reel-editor/internal/metrics"
	"reel-editor/internal/models"
	"reel-editor/internal/project"
	"reel-editor/internal/validation"
)

// Sentinel errors, compared with errors.Is.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUnauthorized    = errors.New("unauthorized: project belongs to another user")
)

const (
	queryTimeout = 5 * time.Second
	DefaultTitle = "Untitled project"
)

type Options struct {
	// Cache is optional; without it every load reads the repository.
	Cache  *Cache
	Logger *zerolog.Logger
	Now    func() time.Time
}

// ProjectService owns project rows. It is the persistence collaborator of
// the editor: Load, Save and UpdateStatus are the calls the editor makes.
type ProjectService struct {
	repo   Repository
	cache  *Cache
	log    zerolog.Logger
	now    func() time.Time
	flight singleflight.Group
}

func NewProjectService(repo Repository, opts Options) *ProjectService {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &ProjectService{
		repo:  repo,
		cache: opts.Cache,
		log:   xlog.Or(opts.Logger, "project_service"),
		now:   now,
	}
}

func (s *ProjectService) stamp() time.Time { return s.now().UTC() }

// Create inserts an empty draft owned by userID.
func (s *ProjectService) Create(ctx context.Context, userID uuid.UUID, title string) (*models.ProjectDocument, error) {
	title = strings.TrimSpace(title)
	if err := validation.ValidateTitle(title); err != nil {
		return nil, err
	}
	if title == "" {
		title = DefaultTitle
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	at := s.stamp()
	doc := &models.ProjectDocument{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Status:      models.StatusDraft,
		ProjectJSON: project.Serialize(project.NewState()),
		Version:     1,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if err := s.repo.Insert(ctx, doc); err != nil {
		s.log.Error().Err(err).Str(xlog.FieldUserID, userID.String()).Msg("create project failed")
		return nil, err
	}
	s.log.Info().
		Str(xlog.FieldProjectID, doc.ID.String()).
		Str(xlog.FieldUserID, userID.String()).
		Msg("project created")
	return doc, nil
}

// Load fetches a project without an ownership check. Concurrent loads of
// the same id share one repository read.
func (s *ProjectService) Load(ctx context.Context, id uuid.UUID) (*models.ProjectDocument, error) {
	raw, err := s.loadRaw(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			metrics.ProjectLoadsTotal.WithLabelValues(metrics.ResultNotFound).Inc()
		} else {
			metrics.ProjectLoadsTotal.WithLabelValues(metrics.ResultError).Inc()
			s.log.Error().Err(err).Str(xlog.FieldProjectID, id.String()).Msg("load project failed")
		}
		return nil, err
	}

	// every caller decodes its own copy
	doc := &models.ProjectDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		metrics.ProjectLoadsTotal.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}
	metrics.ProjectLoadsTotal.WithLabelValues(metrics.ResultOK).Inc()
	return doc, nil
}

func (s *ProjectService) loadRaw(ctx context.Context, id uuid.UUID) ([]byte, error) {
	if s.cache != nil {
		if raw, ok := s.cache.get(ctx, id); ok {
			return raw, nil
		}
	}

	v, err, _ := s.flight.Do(id.String(), func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queryTimeout)
		defer cancel()

		doc, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.set(ctx, id, raw)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// LoadOwned fetches a project and verifies it belongs to userID.
func (s *ProjectService) LoadOwned(ctx context.Context, id, userID uuid.UUID) (*models.ProjectDocument, error) {
	doc, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, ErrUnauthorized
	}
	return doc, nil
}

// Save persists project_json and bumps the version counter. A non-nil
// status is written in the same update.
func (s *ProjectService) Save(ctx context.Context, id uuid.UUID, pj models.ProjectJSON, status *models.Status) error {
	if status != nil {
		if err := validation.ValidateStatus(*status); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := s.repo.Save(ctx, id, pj, status, s.stamp()); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.log.Debug().Str(xlog.FieldProjectID, id.String()).Msg("project saved")
	return nil
}

// UpdateStatus changes only the status; project_json is left untouched.
func (s *ProjectService) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	if err := validation.ValidateStatus(status); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := s.repo.UpdateStatus(ctx, id, status, s.stamp()); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.log.Info().
		Str(xlog.FieldProjectID, id.String()).
		Str("status", string(status)).
		Msg("project status updated")
	return nil
}

// Delete permanently removes a project.
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := s.repo.Delete(ctx, id)
	// a cached copy of a row that is already gone is stale too
	s.invalidate(ctx, id)
	if err != nil {
		return err
	}
	s.log.Info().Str(xlog.FieldProjectID, id.String()).Msg("project deleted")
	return nil
}

// ListDrafts returns the user's draft projects, most recently updated
// first.
func (s *ProjectService) ListDrafts(ctx context.Context, userID uuid.UUID) ([]models.ProjectDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.repo.List(ctx, userID, models.StatusDraft)
}

// Ping checks the repository and, when configured, the cache.
func (s *ProjectService) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return err
	}
	if s.cache != nil {
		return s.cache.Ping(ctx)
	}
	return nil
}

// invalidate runs after a committed write, so it ignores the caller's
// cancellation.
func (s *ProjectService) invalidate(ctx context.Context, id uuid.UUID) {
	s.flight.Forget(id.String())
	if s.cache != nil {
		s.cache.invalidate(context.WithoutCancel(ctx), id)
	}
}
