// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project owns a set of forms. Only OwnerID, Access, RestrictedTo and Active
// take part in record authorization.
type Project struct {
	ID           primitive.ObjectID   `bson:"_id" json:"id"`
	Name         string               `bson:"name" json:"name"`
	NameCI       string               `bson:"name_ci" json:"-"`
	Description  string               `bson:"description" json:"description"`
	OwnerID      primitive.ObjectID   `bson:"owner_id" json:"owner_id"`
	Access       AccessMode           `bson:"access" json:"access"`
	RestrictedTo []primitive.ObjectID `bson:"restricted_to,omitempty" json:"restricted_to,omitempty"`
	Active       bool                 `bson:"active" json:"active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
