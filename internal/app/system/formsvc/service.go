// Package formsvc is the entry point collaborators use for forms, their
// versioned record stores and the projects that own them.
//
// It composes the schema compiler, the version registry, the access policy,
// the record store and the export encoder. Metadata persistence is reached
// through the FormRepo and ProjectRepo interfaces (implemented over MongoDB by
// formstore and projectstore).
//
// Every operation takes the caller's user id; primitive.NilObjectID is an
// anonymous caller. Denials return apperr.ErrForbidden, which the HTTP layer
// renders the same way as apperr.ErrNotFound.
package formsvc

import (
	"context"
	"time"

	recordstore "github.com/dalemusser/formhub/internal/app/store/records"
	"github.com/dalemusser/formhub/internal/app/system/metrics"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/app/system/schema"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// FormRepo persists form heads and their per-version field snapshots.
type FormRepo interface {
	Create(ctx context.Context, f models.Form) (models.Form, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Form, error)
	ListByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Form, error)
	Each(ctx context.Context, fn func(models.Form) error) error
	CountByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (total, inactive int64, err error)
	UpdateMeta(ctx context.Context, id primitive.ObjectID, f models.Form) (models.Form, error)
	AddVersion(ctx context.Context, id primitive.ObjectID, from int, fields []models.Field) (models.Form, error)
	Versions(ctx context.Context, formID primitive.ObjectID) ([]models.FormVersion, error)
	SetActiveByProject(ctx context.Context, projectID primitive.ObjectID, active bool) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) (models.Form, error)
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Form, error)
}

// ProjectRepo persists projects.
type ProjectRepo interface {
	Create(ctx context.Context, p models.Project) (models.Project, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Project, error)
	Update(ctx context.Context, id primitive.ObjectID, p models.Project) (models.Project, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) (models.Project, error)
	Delete(ctx context.Context, id primitive.ObjectID) (models.Project, error)
}

// Deps are the collaborators of a Service. Metrics and Logger may be nil.
type Deps struct {
	Forms    FormRepo
	Projects ProjectRepo
	Registry *registry.Registry
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	// ExportMaxRecords caps the records one export may contain; 0 means
	// unlimited.
	ExportMaxRecords int
}

type Service struct {
	forms     FormRepo
	projects  ProjectRepo
	reg       *registry.Registry
	records   *recordstore.Store
	metrics   *metrics.Metrics
	log       *zap.Logger
	maxExport int
}

func New(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		forms:     d.Forms,
		projects:  d.Projects,
		reg:       d.Registry,
		records:   recordstore.New(),
		metrics:   d.Metrics,
		log:       log,
		maxExport: d.ExportMaxRecords,
	}
}

// Registry returns the registry the service binds versions in.
func (s *Service) Registry() *registry.Registry { return s.reg }

// formContext loads a form together with its owning project.
func (s *Service) formContext(ctx context.Context, formID primitive.ObjectID) (models.Form, models.Project, error) {
	f, err := s.forms.GetByID(ctx, formID)
	if err != nil {
		return models.Form{}, models.Project{}, err
	}
	p, err := s.projects.GetByID(ctx, f.ProjectID)
	if err != nil {
		return models.Form{}, models.Project{}, err
	}
	return f, p, nil
}

// bind publishes a fresh binding and keeps the gauge current.
func (s *Service) bind(ctx context.Context, formID primitive.ObjectID, version int, desc schema.Descriptor, mutable schema.MutableSet) (*registry.Binding, error) {
	start := time.Now()
	b, err := s.reg.Bind(ctx, formID, version, desc, mutable)
	s.metrics.ObserveBind(time.Since(start))
	s.metrics.SetBindings(s.reg.Len())
	return b, err
}

// releaseAll drops versions 1..upTo of the form plus anything still bound.
func (s *Service) releaseAll(ctx context.Context, formID primitive.ObjectID, upTo int) error {
	for v := 1; v <= upTo; v++ {
		if err := s.reg.ReleaseVersion(ctx, formID, v); err != nil {
			return err
		}
	}
	err := s.reg.Release(ctx, formID)
	s.metrics.SetBindings(s.reg.Len())
	return err
}
