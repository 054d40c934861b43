package formsvc

import (
	"context"
	"reflect"
	"strings"

	"github.com/dalemusser/formhub/internal/app/policy/formpolicy"
	formstore "github.com/dalemusser/formhub/internal/app/store/forms"
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/formhub/internal/app/system/registry"
	"github.com/dalemusser/formhub/internal/app/system/schema"
	"github.com/dalemusser/formhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// FormInput describes a new form.
type FormInput struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Fields       []models.Field       `json:"fields"`
	Access       string               `json:"access"`
	RestrictedTo []primitive.ObjectID `json:"restricted_to"`
}

// FormPatch changes a form. Nil members are left alone. Setting Fields to a
// list that differs from the current one creates a new version.
type FormPatch struct {
	Name         *string               `json:"name"`
	Description  *string               `json:"description"`
	Access       *string               `json:"access"`
	RestrictedTo *[]primitive.ObjectID `json:"restricted_to"`
	Fields       *[]models.Field       `json:"fields"`
}

func (p FormPatch) touchesMeta() bool {
	return p.Name != nil || p.Description != nil || p.Access != nil || p.RestrictedTo != nil
}

func parseAccess(s string, def models.AccessMode) (models.AccessMode, error) {
	m, ok := models.ParseAccessMode(s, def)
	if !ok {
		return "", &apperr.ValidationError{Field: "access", Reason: "must be public, private or restricted"}
	}
	return m, nil
}

// Compile normalizes fields and compiles them into a storage schema.
func Compile(fields []models.Field) (schema.Descriptor, schema.MutableSet, error) {
	return schema.Compile(models.NormalizeFields(fields))
}

// CanAccess reports whether caller may perform intent on the form's records.
func (s *Service) CanAccess(caller primitive.ObjectID, project models.Project, form models.Form, intent formpolicy.Intent) bool {
	return formpolicy.CanAccess(caller, project, form, intent)
}

// CreateForm creates a form at version 1 in the project and binds its first
// record store. Only the project owner may create forms.
func (s *Service) CreateForm(ctx context.Context, caller, projectID primitive.ObjectID, in FormInput) (models.Form, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return models.Form{}, err
	}
	if !formpolicy.CanManage(caller, p) {
		return models.Form{}, apperr.ErrForbidden
	}

	fields := models.NormalizeFields(in.Fields)
	desc, mutable, err := schema.Compile(fields)
	if err != nil {
		return models.Form{}, err
	}
	access, err := parseAccess(in.Access, models.AccessPrivate)
	if err != nil {
		return models.Form{}, err
	}

	f, err := s.forms.Create(ctx, models.Form{
		Name:         in.Name,
		Description:  htmlsanitize.Sanitize(in.Description),
		Fields:       fields,
		ProjectID:    p.ID,
		Access:       access,
		RestrictedTo: in.RestrictedTo,
		Active:       p.Active,
	})
	if err != nil {
		return models.Form{}, err
	}

	if _, err := s.bind(ctx, f.ID, f.Version, desc, mutable); err != nil {
		if _, derr := s.forms.Delete(ctx, f.ID); derr != nil {
			s.log.Error("rollback of unbound form failed",
				zap.String("form_id", f.ID.Hex()), zap.Error(derr))
		}
		return models.Form{}, err
	}

	s.log.Info("form created",
		zap.String("form_id", f.ID.Hex()),
		zap.String("project_id", p.ID.Hex()),
		zap.Int("fields", desc.Len()))
	return f, nil
}

// GetForm returns the form if caller may read its records.
func (s *Service) GetForm(ctx context.Context, caller, formID primitive.ObjectID) (models.Form, error) {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return models.Form{}, err
	}
	if !formpolicy.CanAccess(caller, p, f, formpolicy.Read) {
		return models.Form{}, apperr.ErrForbidden
	}
	return f, nil
}

// ListForms returns the project's forms. Owners see all of them; other
// callers who can see the project get only the forms they may read.
func (s *Service) ListForms(ctx context.Context, caller, projectID primitive.ObjectID) ([]models.Form, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !formpolicy.CanViewProject(caller, p) {
		return nil, apperr.ErrForbidden
	}
	forms, err := s.forms.ListByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if formpolicy.IsOwner(caller, p) {
		return forms, nil
	}
	out := forms[:0]
	for _, f := range forms {
		if formpolicy.CanAccess(caller, p, f, formpolicy.Read) {
			out = append(out, f)
		}
	}
	return out, nil
}

// UpdateForm applies patch. Metadata changes happen in place; a changed
// field list becomes a new version with its own, empty record store.
//
// Every check runs before the first write: the field list compiles, the
// access mode parses and the name is valid and free in the project. The
// version step then runs before the metadata write, so a failed version
// leaves the form as it was. Without a transaction a concurrent rename can
// still take the name between the check and the write; the new version is
// kept in that case and the error is returned.
func (s *Service) UpdateForm(ctx context.Context, caller, formID primitive.ObjectID, patch FormPatch) (models.Form, error) {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return models.Form{}, err
	}
	if !formpolicy.CanManage(caller, p) {
		return models.Form{}, apperr.ErrForbidden
	}

	var fields []models.Field
	var desc schema.Descriptor
	var mutable schema.MutableSet
	newVersion := false
	if patch.Fields != nil {
		fields = models.NormalizeFields(*patch.Fields)
		if desc, mutable, err = schema.Compile(fields); err != nil {
			return models.Form{}, err
		}
		newVersion = !sameFields(fields, f.Fields)
	}

	next := f
	if patch.touchesMeta() {
		if patch.Name != nil {
			next.Name = strings.TrimSpace(*patch.Name)
			if err := s.checkFormName(ctx, f, next.Name); err != nil {
				return models.Form{}, err
			}
		}
		if patch.Description != nil {
			next.Description = htmlsanitize.Sanitize(*patch.Description)
		}
		if patch.Access != nil {
			if next.Access, err = parseAccess(*patch.Access, f.Access); err != nil {
				return models.Form{}, err
			}
		}
		if patch.RestrictedTo != nil {
			next.RestrictedTo = *patch.RestrictedTo
		}
	}

	if newVersion {
		if f, _, err = s.addVersion(ctx, f, fields, desc, mutable); err != nil {
			return models.Form{}, err
		}
	}

	if patch.touchesMeta() {
		if f, err = s.forms.UpdateMeta(ctx, f.ID, next); err != nil {
			return models.Form{}, err
		}
	}
	return f, nil
}

// checkFormName rejects a name the store would refuse: a malformed name or
// one another form in the same project already uses.
func (s *Service) checkFormName(ctx context.Context, f models.Form, name string) error {
	if err := formstore.ValidateName(name); err != nil {
		return err
	}
	siblings, err := s.forms.ListByProject(ctx, f.ProjectID)
	if err != nil {
		return err
	}
	folded := text.Fold(name)
	for _, o := range siblings {
		if o.ID != f.ID && o.NameCI == folded {
			return &apperr.DuplicateError{Key: "name"}
		}
	}
	return nil
}

func sameFields(a, b []models.Field) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// CreateFormVersion records fields as the form's next version and binds a
// fresh record store for it. Records of earlier versions stay where they
// are and remain reachable by explicit version.
func (s *Service) CreateFormVersion(ctx context.Context, caller, formID primitive.ObjectID, fields []models.Field) (*registry.Binding, error) {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !formpolicy.CanManage(caller, p) {
		return nil, apperr.ErrForbidden
	}
	fields = models.NormalizeFields(fields)
	desc, mutable, err := schema.Compile(fields)
	if err != nil {
		return nil, err
	}
	_, b, err := s.addVersion(ctx, f, fields, desc, mutable)
	return b, err
}

func (s *Service) addVersion(ctx context.Context, f models.Form, fields []models.Field, desc schema.Descriptor, mutable schema.MutableSet) (models.Form, *registry.Binding, error) {
	updated, err := s.forms.AddVersion(ctx, f.ID, f.Version, fields)
	if err != nil {
		return models.Form{}, nil, err
	}
	b, err := s.bind(ctx, updated.ID, updated.Version, desc, mutable)
	if err != nil {
		// The snapshot is stored, so Rehydrate binds it on the next start.
		s.log.Error("form version stored but not bound",
			zap.String("form_id", updated.ID.Hex()),
			zap.Int("version", updated.Version),
			zap.Error(err))
		return models.Form{}, nil, err
	}
	s.log.Info("form version created",
		zap.String("form_id", updated.ID.Hex()),
		zap.Int("version", updated.Version),
		zap.Int("fields", desc.Len()))
	return updated, b, nil
}

// FormVersions returns every stored version of the form. Owner only.
func (s *Service) FormVersions(ctx context.Context, caller, formID primitive.ObjectID) ([]models.FormVersion, error) {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !formpolicy.CanManage(caller, p) {
		return nil, apperr.ErrForbidden
	}
	return s.forms.Versions(ctx, f.ID)
}

// DeleteForm removes the form and drops the record stores of all its
// versions.
func (s *Service) DeleteForm(ctx context.Context, caller, formID primitive.ObjectID) (models.Form, error) {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return models.Form{}, err
	}
	if !formpolicy.CanManage(caller, p) {
		return models.Form{}, apperr.ErrForbidden
	}
	deleted, err := s.forms.Delete(ctx, f.ID)
	if err != nil {
		return models.Form{}, err
	}
	if err := s.releaseAll(ctx, deleted.ID, deleted.Version); err != nil {
		return models.Form{}, err
	}
	s.log.Info("form deleted", zap.String("form_id", deleted.ID.Hex()), zap.Int("versions", deleted.Version))
	return deleted, nil
}

// ResolveBinding returns the binding for version, or for the form's current
// version when version is nil.
func (s *Service) ResolveBinding(ctx context.Context, formID primitive.ObjectID, version *int) (*registry.Binding, error) {
	f, err := s.forms.GetByID(ctx, formID)
	if err != nil {
		return nil, err
	}
	return s.resolve(f, version)
}

func (s *Service) resolve(f models.Form, version *int) (*registry.Binding, error) {
	v := f.Version
	if version != nil {
		v = *version
	}
	return s.reg.Resolve(f.ID, &v)
}

// ReleaseForm drops the record stores of every version of the form. The
// form itself is kept. Owner only.
func (s *Service) ReleaseForm(ctx context.Context, caller, formID primitive.ObjectID) error {
	f, p, err := s.formContext(ctx, formID)
	if err != nil {
		return err
	}
	if !formpolicy.CanManage(caller, p) {
		return apperr.ErrForbidden
	}
	return s.releaseAll(ctx, f.ID, f.Version)
}

// ReleaseVersion drops one version's record store. Releasing a version
// twice is not an error. Owner only.
func (s *Service) ReleaseVersion(ctx context.Context, caller, formID primitive.ObjectID, version int) error {
	_, p, err := s.formContext(ctx, formID)
	if err != nil {
		return err
	}
	if !formpolicy.CanManage(caller, p) {
		return apperr.ErrForbidden
	}
	err = s.reg.ReleaseVersion(ctx, formID, version)
	s.metrics.SetBindings(s.reg.Len())
	return err
}
