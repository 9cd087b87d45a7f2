package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type riderRepository struct {
	collection *mongo.Collection
}

func NewRiderRepository(db *mongo.Database) interfaces.RiderRepository {
	return &riderRepository{
		collection: db.Collection(database.CollectionRiders),
	}
}

func (r *riderRepository) Create(ctx context.Context, rider *models.Rider) error {
	if rider.ID.IsZero() {
		rider.ID = primitive.NewObjectID()
	}
	rider.CreatedAt = time.Now()
	rider.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, rider)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicate
		}
		return fmt.Errorf("failed to create rider: %w", err)
	}
	return nil
}

func (r *riderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Rider, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *riderRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Rider, error) {
	return r.findOne(ctx, bson.M{"user_id": userID})
}

func (r *riderRepository) ClaimActiveRide(ctx context.Context, riderID, rideID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id":            riderID,
		"active_ride_id": nil,
	}
	update := bson.M{
		"$set": bson.M{
			"active_ride_id": rideID,
			"updated_at":     time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to claim active ride: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *riderRepository) ReleaseActiveRide(ctx context.Context, riderID, rideID primitive.ObjectID, completed bool, spent float64) (bool, error) {
	filter := bson.M{
		"_id":            riderID,
		"active_ride_id": rideID,
	}
	update := bson.M{
		"$set": bson.M{
			"active_ride_id": nil,
			"updated_at":     time.Now(),
		},
	}
	if completed {
		update["$inc"] = bson.M{
			"total_rides": 1,
			"total_spent": spent,
		}
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to release active ride: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *riderRepository) UpdateLocation(ctx context.Context, riderID primitive.ObjectID, location *models.Location) (*models.Rider, error) {
	now := time.Now()
	location.UpdatedAt = &now
	update := bson.M{
		"$set": bson.M{
			"current_location": location,
			"updated_at":       now,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var rider models.Rider
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": riderID}, update, opts).Decode(&rider)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update rider location: %w", err)
	}
	return &rider, nil
}

func (r *riderRepository) findOne(ctx context.Context, filter bson.M) (*models.Rider, error) {
	var rider models.Rider
	err := r.collection.FindOne(ctx, filter).Decode(&rider)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rider: %w", err)
	}
	return &rider, nil
}
