package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRole string

const (
	RoleAuthor    UserRole = "author"
	RoleInitiator UserRole = "initiator"
	RoleExecutor  UserRole = "executor"
	RoleAdmin     UserRole = "admin"
)

// User mirrors the identity provider account inside our own collection.
// ProviderUserID is the external identity; everything else is a snapshot
// taken when the user first visits the dashboard.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProviderUserID string             `bson:"providerUserId" json:"providerUserId"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	Role           UserRole           `bson:"role" json:"role"`
	ProfilePic     string             `bson:"profilePic,omitempty" json:"profilePic,omitempty"`
}
