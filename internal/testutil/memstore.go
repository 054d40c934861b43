package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	formstore "github.com/dalemusser/formhub/internal/app/store/forms"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemForms is an in-memory formsvc.FormRepo with the same uniqueness and
// versioning rules as formstore.
type MemForms struct {
	mu       sync.Mutex
	forms    map[primitive.ObjectID]models.Form
	versions map[primitive.ObjectID][]models.FormVersion
}

func NewMemForms() *MemForms {
	return &MemForms{
		forms:    make(map[primitive.ObjectID]models.Form),
		versions: make(map[primitive.ObjectID][]models.FormVersion),
	}
}

func formAccess(f *models.Form) {
	if f.Access == "" {
		f.Access = models.AccessPrivate
	}
	if f.Access != models.AccessRestricted {
		f.RestrictedTo = nil
	}
}

func (m *MemForms) nameTaken(projectID, except primitive.ObjectID, nameCI string) bool {
	for _, f := range m.forms {
		if f.ProjectID == projectID && f.NameCI == nameCI && f.ID != except {
			return true
		}
	}
	return false
}

func (m *MemForms) Create(_ context.Context, f models.Form) (models.Form, error) {
	f.Name = strings.TrimSpace(f.Name)
	if err := formstore.ValidateName(f.Name); err != nil {
		return models.Form{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	f.NameCI = text.Fold(f.Name)
	if m.nameTaken(f.ProjectID, primitive.NilObjectID, f.NameCI) {
		return models.Form{}, &apperr.DuplicateError{Key: "name"}
	}
	now := time.Now().UTC()
	f.ID = primitive.NewObjectID()
	f.Version = 1
	f.Fields = models.NormalizeFields(f.Fields)
	if f.Fields == nil {
		f.Fields = []models.Field{}
	}
	formAccess(&f)
	f.CreatedAt, f.UpdatedAt = now, now

	m.forms[f.ID] = f
	m.versions[f.ID] = []models.FormVersion{{ID: primitive.NewObjectID(), FormID: f.ID, Version: 1, Fields: f.Fields, CreatedAt: now}}
	return f, nil
}

func (m *MemForms) GetByID(_ context.Context, id primitive.ObjectID) (models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return models.Form{}, apperr.ErrNotFound
	}
	return f, nil
}

func (m *MemForms) sorted(keep func(models.Form) bool) []models.Form {
	out := []models.Form{}
	for _, f := range m.forms {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameCI != out[j].NameCI {
			return out[i].NameCI < out[j].NameCI
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out
}

func (m *MemForms) ListByProject(_ context.Context, projectID primitive.ObjectID) ([]models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(f models.Form) bool { return f.ProjectID == projectID }), nil
}

func (m *MemForms) Each(ctx context.Context, fn func(models.Form) error) error {
	m.mu.Lock()
	all := m.sorted(func(models.Form) bool { return true })
	m.mu.Unlock()
	for _, f := range all {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemForms) CountByProjects(_ context.Context, projectIDs []primitive.ObjectID) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := make(map[primitive.ObjectID]bool, len(projectIDs))
	for _, id := range projectIDs {
		in[id] = true
	}
	var total, inactive int64
	for _, f := range m.forms {
		if !in[f.ProjectID] {
			continue
		}
		total++
		if !f.Active {
			inactive++
		}
	}
	return total, inactive, nil
}

func (m *MemForms) UpdateMeta(_ context.Context, id primitive.ObjectID, f models.Form) (models.Form, error) {
	name := strings.TrimSpace(f.Name)
	if err := formstore.ValidateName(name); err != nil {
		return models.Form{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.forms[id]
	if !ok {
		return models.Form{}, apperr.ErrNotFound
	}
	if m.nameTaken(cur.ProjectID, id, text.Fold(name)) {
		return models.Form{}, &apperr.DuplicateError{Key: "name"}
	}
	cur.Name, cur.NameCI = name, text.Fold(name)
	cur.Description = f.Description
	cur.Access, cur.RestrictedTo = f.Access, f.RestrictedTo
	formAccess(&cur)
	cur.UpdatedAt = time.Now().UTC()
	m.forms[id] = cur
	return cur, nil
}

func (m *MemForms) AddVersion(_ context.Context, id primitive.ObjectID, from int, fields []models.Field) (models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.forms[id]
	if !ok {
		return models.Form{}, apperr.ErrNotFound
	}
	if cur.Version != from {
		return models.Form{}, &apperr.DuplicateError{Key: "version"}
	}
	fields = models.NormalizeFields(fields)
	if fields == nil {
		fields = []models.Field{}
	}
	now := time.Now().UTC()
	cur.Version++
	cur.Fields = fields
	cur.UpdatedAt = now
	m.forms[id] = cur
	m.versions[id] = append(m.versions[id], models.FormVersion{
		ID: primitive.NewObjectID(), FormID: id, Version: cur.Version, Fields: fields, CreatedAt: now,
	})
	return cur, nil
}

func (m *MemForms) Versions(_ context.Context, formID primitive.ObjectID) ([]models.FormVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.FormVersion{}, m.versions[formID]...), nil
}

func (m *MemForms) SetActiveByProject(_ context.Context, projectID primitive.ObjectID, active bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, f := range m.forms {
		if f.ProjectID == projectID && f.Active != active {
			f.Active = active
			m.forms[id] = f
			n++
		}
	}
	return n, nil
}

func (m *MemForms) Delete(_ context.Context, id primitive.ObjectID) (models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.forms[id]
	if !ok {
		return models.Form{}, apperr.ErrNotFound
	}
	delete(m.forms, id)
	delete(m.versions, id)
	return f, nil
}

func (m *MemForms) DeleteByProject(_ context.Context, projectID primitive.ObjectID) ([]models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(f models.Form) bool { return f.ProjectID == projectID })
	for _, f := range out {
		delete(m.forms, f.ID)
		delete(m.versions, f.ID)
	}
	return out, nil
}

// MemProjects is an in-memory formsvc.ProjectRepo.
type MemProjects struct {
	mu       sync.Mutex
	projects map[primitive.ObjectID]models.Project
}

func NewMemProjects() *MemProjects {
	return &MemProjects{projects: make(map[primitive.ObjectID]models.Project)}
}

func projectAccess(p *models.Project) {
	if p.Access == "" {
		p.Access = models.AccessPublic
	}
	if p.Access != models.AccessRestricted {
		p.RestrictedTo = nil
	}
}

func (m *MemProjects) nameTaken(except primitive.ObjectID, nameCI string) bool {
	for _, p := range m.projects {
		if p.NameCI == nameCI && p.ID != except {
			return true
		}
	}
	return false
}

func (m *MemProjects) Create(_ context.Context, p models.Project) (models.Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.Project{}, &apperr.ValidationError{Field: "name", Reason: "is required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.NameCI = text.Fold(p.Name)
	if m.nameTaken(primitive.NilObjectID, p.NameCI) {
		return models.Project{}, &apperr.DuplicateError{Key: "name"}
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	projectAccess(&p)
	p.CreatedAt, p.UpdatedAt = now, now
	m.projects[p.ID] = p
	return p, nil
}

func (m *MemProjects) GetByID(_ context.Context, id primitive.ObjectID) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return models.Project{}, apperr.ErrNotFound
	}
	return p, nil
}

func (m *MemProjects) ListByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Project{}
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameCI < out[j].NameCI })
	return out, nil
}

func (m *MemProjects) Update(_ context.Context, id primitive.ObjectID, p models.Project) (models.Project, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return models.Project{}, &apperr.ValidationError{Field: "name", Reason: "is required"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.projects[id]
	if !ok {
		return models.Project{}, apperr.ErrNotFound
	}
	if m.nameTaken(id, text.Fold(name)) {
		return models.Project{}, &apperr.DuplicateError{Key: "name"}
	}
	cur.Name, cur.NameCI = name, text.Fold(name)
	cur.Description = p.Description
	cur.Access, cur.RestrictedTo = p.Access, p.RestrictedTo
	projectAccess(&cur)
	cur.UpdatedAt = time.Now().UTC()
	m.projects[id] = cur
	return cur, nil
}

func (m *MemProjects) SetActive(_ context.Context, id primitive.ObjectID, active bool) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return models.Project{}, apperr.ErrNotFound
	}
	p.Active = active
	m.projects[id] = p
	return p, nil
}

func (m *MemProjects) Delete(_ context.Context, id primitive.ObjectID) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return models.Project{}, apperr.ErrNotFound
	}
	delete(m.projects, id)
	return p, nil
}
