package services

import (
	"context"
	"fmt"

	"telecom-project/tasks-service/logging"
	"telecom-project/tasks-service/models"
	"telecom-project/tasks-service/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserResolver looks up participant snapshots by their identity-provider id.
// TaskService depends on this interface so update logic can be tested with
// an in-memory implementation.
type UserResolver interface {
	GetByProviderID(ctx context.Context, providerUserID string) (*models.User, error)
}

type UserService struct {
	UserCollection *mongo.Collection
}

func NewUserService(userCollection *mongo.Collection) *UserService {
	return &UserService{UserCollection: userCollection}
}

// GetByProviderID returns the user with the given identity-provider id, or
// ErrUserNotFound.
func (s *UserService) GetByProviderID(ctx context.Context, providerUserID string) (*models.User, error) {
	var user models.User
	err := s.UserCollection.FindOne(ctx, bson.M{"providerUserId": providerUserID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %s: %v", providerUserID, err)
	}
	return &user, nil
}

// EnsureUser returns the user matching the token claims, creating it on the
// first visit. New users start with the "author" role; an administrator
// promotes them afterwards.
func (s *UserService) EnsureUser(ctx context.Context, claims *utils.Claims) (*models.User, error) {
	user, err := s.GetByProviderID(ctx, claims.UserID)
	if err == nil {
		return user, nil
	}
	if err != ErrUserNotFound {
		return nil, err
	}

	newUser := &models.User{
		ID:             primitive.NewObjectID(),
		ProviderUserID: claims.UserID,
		Name:           claims.Name,
		Email:          claims.Email,
		Role:           models.RoleAuthor,
		ProfilePic:     claims.Picture,
	}

	if _, err := s.UserCollection.InsertOne(ctx, newUser); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %v", claims.UserID, err)
	}

	logging.Logger.Infof("Event ID: USER_CREATED, Description: Created user %s (%s) on first visit", newUser.Name, newUser.ProviderUserID)
	return newUser, nil
}

// GetAllUsers returns every known user, for participant pickers in the UI.
func (s *UserService) GetAllUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.UserCollection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}
	return users, nil
}
