package formsvc

import (
	"context"

	"github.com/dalemusser/formhub/internal/app/policy/formpolicy"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/formhub/internal/app/system/schema"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ProjectInput describes a new project (or the copy made by CloneProject).
type ProjectInput struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Access       string               `json:"access"`
	RestrictedTo []primitive.ObjectID `json:"restricted_to"`
}

// ProjectPatch changes a project. Nil members are left alone.
type ProjectPatch struct {
	Name         *string               `json:"name"`
	Description  *string               `json:"description"`
	Access       *string               `json:"access"`
	RestrictedTo *[]primitive.ObjectID `json:"restricted_to"`
}

// Counts is a total with how many of those are inactive.
type Counts struct {
	Total    int64 `json:"total"`
	Inactive int64 `json:"inactive"`
}

// Stats summarizes the caller's projects and their forms.
type Stats struct {
	Projects Counts `json:"projects"`
	Forms    Counts `json:"forms"`
}

func (s *Service) ownedProject(ctx context.Context, caller, projectID primitive.ObjectID) (models.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !formpolicy.CanManage(caller, p) {
		return models.Project{}, apperr.ErrForbidden
	}
	return p, nil
}

// CreateProject creates an active project owned by caller. Anonymous
// callers cannot own projects.
func (s *Service) CreateProject(ctx context.Context, caller primitive.ObjectID, in ProjectInput) (models.Project, error) {
	if caller.IsZero() {
		return models.Project{}, apperr.ErrForbidden
	}
	access, err := parseAccess(in.Access, models.AccessPublic)
	if err != nil {
		return models.Project{}, err
	}
	p, err := s.projects.Create(ctx, models.Project{
		Name:         in.Name,
		Description:  htmlsanitize.Sanitize(in.Description),
		OwnerID:      caller,
		Access:       access,
		RestrictedTo: in.RestrictedTo,
		Active:       true,
	})
	if err != nil {
		return models.Project{}, err
	}
	s.log.Info("project created", zap.String("project_id", p.ID.Hex()), zap.String("owner_id", caller.Hex()))
	return p, nil
}

// GetProject returns the project if caller may see it.
func (s *Service) GetProject(ctx context.Context, caller, projectID primitive.ObjectID) (models.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if !formpolicy.CanViewProject(caller, p) {
		return models.Project{}, apperr.ErrForbidden
	}
	return p, nil
}

// ListProjects returns the projects caller owns.
func (s *Service) ListProjects(ctx context.Context, caller primitive.ObjectID) ([]models.Project, error) {
	if caller.IsZero() {
		return []models.Project{}, nil
	}
	return s.projects.ListByOwner(ctx, caller)
}

// UpdateProject applies patch. Owner only.
func (s *Service) UpdateProject(ctx context.Context, caller, projectID primitive.ObjectID, patch ProjectPatch) (models.Project, error) {
	p, err := s.ownedProject(ctx, caller, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = htmlsanitize.Sanitize(*patch.Description)
	}
	if patch.Access != nil {
		if p.Access, err = parseAccess(*patch.Access, p.Access); err != nil {
			return models.Project{}, err
		}
	}
	if patch.RestrictedTo != nil {
		p.RestrictedTo = *patch.RestrictedTo
	}
	return s.projects.Update(ctx, p.ID, p)
}

// SetProjectActive activates or deactivates the project and all its forms.
func (s *Service) SetProjectActive(ctx context.Context, caller, projectID primitive.ObjectID, active bool) (models.Project, error) {
	if _, err := s.ownedProject(ctx, caller, projectID); err != nil {
		return models.Project{}, err
	}
	p, err := s.projects.SetActive(ctx, projectID, active)
	if err != nil {
		return models.Project{}, err
	}
	n, err := s.forms.SetActiveByProject(ctx, projectID, active)
	if err != nil {
		return models.Project{}, err
	}
	s.log.Info("project activation changed",
		zap.String("project_id", projectID.Hex()),
		zap.Bool("active", active),
		zap.Int64("forms", n))
	return p, nil
}

// CloneProject creates a project owned by caller holding a copy of every
// active form of the source project. Copies start at version 1 with the
// source's current fields, private access and an empty record store.
func (s *Service) CloneProject(ctx context.Context, caller, sourceID primitive.ObjectID, in ProjectInput) (models.Project, error) {
	src, err := s.GetProject(ctx, caller, sourceID)
	if err != nil {
		return models.Project{}, err
	}
	srcForms, err := s.forms.ListByProject(ctx, src.ID)
	if err != nil {
		return models.Project{}, err
	}

	p, err := s.CreateProject(ctx, caller, in)
	if err != nil {
		return models.Project{}, err
	}

	copied := 0
	for _, sf := range srcForms {
		if !sf.Active {
			continue
		}
		desc, mutable, err := schema.Compile(sf.Fields)
		if err != nil {
			return models.Project{}, err
		}
		f, err := s.forms.Create(ctx, models.Form{
			Name:        sf.Name,
			Description: sf.Description,
			Fields:      sf.Fields,
			ProjectID:   p.ID,
			Access:      models.AccessPrivate,
			Active:      true,
		})
		if err != nil {
			return models.Project{}, err
		}
		if _, err := s.bind(ctx, f.ID, f.Version, desc, mutable); err != nil {
			return models.Project{}, err
		}
		copied++
	}

	s.log.Info("project cloned",
		zap.String("source_id", src.ID.Hex()),
		zap.String("project_id", p.ID.Hex()),
		zap.Int("forms", copied))
	return p, nil
}

// DeleteProject removes the project, its forms and every record store of
// those forms. Owner only.
func (s *Service) DeleteProject(ctx context.Context, caller, projectID primitive.ObjectID) (models.Project, error) {
	if _, err := s.ownedProject(ctx, caller, projectID); err != nil {
		return models.Project{}, err
	}
	p, err := s.projects.Delete(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	forms, err := s.forms.DeleteByProject(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	for _, f := range forms {
		if err := s.releaseAll(ctx, f.ID, f.Version); err != nil {
			return models.Project{}, err
		}
	}
	s.log.Info("project deleted", zap.String("project_id", projectID.Hex()), zap.Int("forms", len(forms)))
	return p, nil
}

// Stats counts caller's projects and the forms inside them.
func (s *Service) Stats(ctx context.Context, caller primitive.ObjectID) (Stats, error) {
	var st Stats
	projects, err := s.ListProjects(ctx, caller)
	if err != nil {
		return st, err
	}
	ids := make([]primitive.ObjectID, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
		if !p.Active {
			st.Projects.Inactive++
		}
	}
	st.Projects.Total = int64(len(projects))
	st.Forms.Total, st.Forms.Inactive, err = s.forms.CountByProjects(ctx, ids)
	return st, err
}
