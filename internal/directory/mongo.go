package directory

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/db"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
)

const lookupTimeout = 5 * time.Second

// enrollment mirrors the course service's enrollment documents. One document
// per (course, user); role distinguishes students from instructors.
type enrollment struct {
	CourseID string `bson:"course_id"`
	UserID   string `bson:"user_id"`
	Role     string `bson:"role"`
	Active   bool   `bson:"active"`
}

type mongoAuthZ struct {
	enrollments *db.Repository[enrollment]
	logger      *zap.Logger
}

// NewMongoAuthZ returns an AuthZ backed by the enrollments collection.
func NewMongoAuthZ(con *mongo.Database, collection string, logger *zap.Logger) AuthZ {
	return &mongoAuthZ{
		enrollments: db.NewRepository[enrollment](con, collection),
		logger:      logger,
	}
}

func (a *mongoAuthZ) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("course_id", groupID).
		Eq("user_id", userID).
		Eq("active", true).
		Build()

	ok, err := a.enrollments.Exists(ctx, filter)
	if err != nil {
		a.logger.Error("membership lookup failed",
			zap.String("group_id", groupID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false, err
	}
	return ok, nil
}

func (a *mongoAuthZ) IsModerator(ctx context.Context, groupID, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("course_id", groupID).
		Eq("user_id", userID).
		Eq("active", true).
		In("role", []string{"instructor", "assistant"}).
		Build()

	return a.enrollments.Exists(ctx, filter)
}

type mongoUserDirectory struct {
	users  *db.Repository[model.User]
	logger *zap.Logger
}

// NewMongoUserDirectory returns a UserDirectory backed by the users collection.
func NewMongoUserDirectory(con *mongo.Database, collection string, logger *zap.Logger) UserDirectory {
	return &mongoUserDirectory{
		users:  db.NewRepository[model.User](con, collection),
		logger: logger,
	}
}

func (d *mongoUserDirectory) Get(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	user, err := d.users.FindOne(ctx, db.NewFilter().Eq("_id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("user %s not found", userID)
		}
		d.logger.Error("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	if user.Preferences.MinPriority == "" {
		user.Preferences = model.DefaultPreferences()
	}
	return user, nil
}
