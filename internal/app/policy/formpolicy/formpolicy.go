// Package formpolicy provides authorization policies for form records.
//
// Authorization rules (evaluated in order):
//   - The project owner may read and write every form of the project
//   - An inactive form denies everyone else
//   - public forms allow anyone, including anonymous callers, to read and write
//   - private forms deny everyone but the owner
//   - restricted forms allow the users listed in the form's restricted_to
//
// Listing or exporting all records of a form is owner-only regardless of the
// access mode, so a public intake form never exposes its full response set.
package formpolicy

// Terminology: Caller
//   - caller is the authenticated user's ObjectID, or NilObjectID for an
//     anonymous request. The owner check never matches an anonymous caller.

import (
	"github.com/dalemusser/formhub/internal/app/system/apperr"
	"github.com/dalemusser/formhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Intent is the kind of record operation being authorized.
type Intent int

const (
	Read Intent = iota
	Write
)

func (i Intent) String() string {
	if i == Write {
		return "write"
	}
	return "read"
}

// IsOwner reports whether caller owns the project.
func IsOwner(caller primitive.ObjectID, project models.Project) bool {
	return !caller.IsZero() && caller == project.OwnerID
}

// CanAccess reports whether caller may perform intent on records of form.
func CanAccess(caller primitive.ObjectID, project models.Project, form models.Form, intent Intent) bool {
	if IsOwner(caller, project) {
		return true
	}
	if !form.Active {
		return false
	}
	switch form.Access {
	case models.AccessPublic:
		return true
	case models.AccessRestricted:
		return !caller.IsZero() && form.IsRestrictedTo(caller)
	default:
		return false
	}
}

// CanList reports whether caller may enumerate (or export) every record of
// the project's forms.
func CanList(caller primitive.ObjectID, project models.Project) bool {
	return IsOwner(caller, project)
}

// CanManage reports whether caller may change the form definition itself.
func CanManage(caller primitive.ObjectID, project models.Project) bool {
	return IsOwner(caller, project)
}

// CanViewProject reports whether caller may see the project: owners always,
// others when it is public or they are on its restricted list.
func CanViewProject(caller primitive.ObjectID, project models.Project) bool {
	if IsOwner(caller, project) {
		return true
	}
	switch project.Access {
	case models.AccessPublic:
		return true
	case models.AccessRestricted:
		if caller.IsZero() {
			return false
		}
		for _, id := range project.RestrictedTo {
			if id == caller {
				return true
			}
		}
	}
	return false
}

// Authorize is CanAccess returning apperr.ErrForbidden on denial.
func Authorize(caller primitive.ObjectID, project models.Project, form models.Form, intent Intent) error {
	if !CanAccess(caller, project, form, intent) {
		return apperr.ErrForbidden
	}
	return nil
}

// AuthorizeList is CanList returning apperr.ErrForbidden on denial.
func AuthorizeList(caller primitive.ObjectID, project models.Project) error {
	if !CanList(caller, project) {
		return apperr.ErrForbidden
	}
	return nil
}
