package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SiteObject is one entry of the base-station registry (the "objects"
// collection). Name is the canonical site id, e.g. "MS1".
type SiteObject struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Coordinates Coordinates        `bson:"coordinates" json:"coordinates"`
	Address     string             `bson:"address,omitempty" json:"address,omitempty"`
}
