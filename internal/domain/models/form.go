// internal/domain/models/form.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Form is the mutable head of a form definition. Fields always holds the
// field list of the current Version; earlier field lists live in the
// form_versions collection as FormVersion snapshots.
//
// NOTE:
//   - Version starts at 1 and grows by exactly one per field-list edit.
//   - RestrictedTo is empty unless Access is AccessRestricted.
type Form struct {
	ID           primitive.ObjectID   `bson:"_id" json:"id"`
	Name         string               `bson:"name" json:"name"`
	NameCI       string               `bson:"name_ci" json:"-"`
	Description  string               `bson:"description" json:"description"`
	Fields       []Field              `bson:"fields" json:"fields"`
	Version      int                  `bson:"version" json:"version"`
	ProjectID    primitive.ObjectID   `bson:"project_id" json:"project_id"`
	Access       AccessMode           `bson:"access" json:"access"`
	RestrictedTo []primitive.ObjectID `bson:"restricted_to,omitempty" json:"restricted_to,omitempty"`
	Active       bool                 `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FormVersion is an immutable snapshot of a form's field list.
type FormVersion struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	FormID    primitive.ObjectID `bson:"form_id" json:"form_id"`
	Version   int                `bson:"version" json:"version"`
	Fields    []Field            `bson:"fields" json:"fields"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// IsRestrictedTo reports whether userID appears in the form's restricted list.
func (f Form) IsRestrictedTo(userID primitive.ObjectID) bool {
	for _, id := range f.RestrictedTo {
		if id == userID {
			return true
		}
	}
	return false
}
