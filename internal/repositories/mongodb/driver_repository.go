package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"
	"goride/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type driverRepository struct {
	collection *mongo.Collection
}

func NewDriverRepository(db *mongo.Database) interfaces.DriverRepository {
	return &driverRepository{
		collection: db.Collection(database.CollectionDrivers),
	}
}

func (r *driverRepository) Create(ctx context.Context, driver *models.Driver) error {
	if driver.ID.IsZero() {
		driver.ID = primitive.NewObjectID()
	}
	driver.CreatedAt = time.Now()
	driver.UpdatedAt = time.Now()
	if driver.Availability == "" {
		driver.Availability = models.DriverOffline
	}

	_, err := r.collection.InsertOne(ctx, driver)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicate
		}
		return fmt.Errorf("failed to create driver: %w", err)
	}
	return nil
}

func (r *driverRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *driverRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Driver, error) {
	return r.findOne(ctx, bson.M{"user_id": userID})
}

func (r *driverRepository) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.Driver, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get drivers: %w", err)
	}
	defer cursor.Close(ctx)

	var drivers []*models.Driver
	if err := cursor.All(ctx, &drivers); err != nil {
		return nil, fmt.Errorf("failed to decode drivers: %w", err)
	}
	return drivers, nil
}

func (r *driverRepository) Reserve(ctx context.Context, driverID, rideID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id":             driverID,
		"availability":    models.DriverAvailable,
		"current_ride_id": nil,
	}
	update := bson.M{
		"$set": bson.M{
			"availability":    models.DriverBusy,
			"current_ride_id": rideID,
			"updated_at":      time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to reserve driver: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *driverRepository) Release(ctx context.Context, driverID, rideID primitive.ObjectID, completed bool, earnings float64) (bool, error) {
	filter := bson.M{
		"_id":             driverID,
		"current_ride_id": rideID,
	}
	update := bson.M{
		"$set": bson.M{
			"availability":    models.DriverAvailable,
			"current_ride_id": nil,
			"updated_at":      time.Now(),
		},
	}
	if completed {
		update["$inc"] = bson.M{
			"total_rides": 1,
			"earnings":    earnings,
		}
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to release driver: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *driverRepository) SetAvailability(ctx context.Context, driverID primitive.ObjectID, availability models.DriverAvailability) (*models.Driver, bool, error) {
	filter := bson.M{
		"_id":             driverID,
		"current_ride_id": nil,
		"availability":    bson.M{"$ne": models.DriverBusy},
	}
	update := bson.M{
		"$set": bson.M{
			"availability": availability,
			"updated_at":   time.Now(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var driver models.Driver
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&driver)
	if err == nil {
		return &driver, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update driver availability: %w", err)
	}

	current, err := r.GetByID(ctx, driverID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *driverRepository) ApplyRating(ctx context.Context, driverID primitive.ObjectID, observedCount int64, rating float64) (bool, error) {
	filter := bson.M{
		"_id":          driverID,
		"rating_count": observedCount,
	}
	update := bson.M{
		"$set": bson.M{
			"rating":     rating,
			"updated_at": time.Now(),
		},
		"$inc": bson.M{"rating_count": 1},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to apply driver rating: %w", err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *driverRepository) UpdateLocation(ctx context.Context, driverID primitive.ObjectID, location *models.Location) (*models.Driver, error) {
	now := time.Now()
	location.UpdatedAt = &now
	update := bson.M{
		"$set": bson.M{
			"current_location": location,
			"updated_at":       now,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var driver models.Driver
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": driverID}, update, opts).Decode(&driver)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update driver location: %w", err)
	}
	return &driver, nil
}

func (r *driverRepository) FindNearbyAvailable(ctx context.Context, lat, lng, radiusKm float64, vehicles []models.VehicleClass, limit int) ([]*models.DriverDistance, error) {
	filter := bson.M{
		"current_location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        models.GeoJSONPoint,
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": radiusKm * 1000,
			},
		},
		"availability":    models.DriverAvailable,
		"current_ride_id": nil,
	}
	if len(vehicles) > 0 {
		filter["vehicle_class"] = bson.M{"$in": vehicles}
	}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby drivers: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*models.DriverDistance
	for cursor.Next(ctx) {
		var driver models.Driver
		if err := cursor.Decode(&driver); err != nil {
			return nil, fmt.Errorf("failed to decode driver: %w", err)
		}
		if driver.CurrentLocation == nil {
			continue
		}
		results = append(results, &models.DriverDistance{
			Driver: &driver,
			DistanceKm: utils.CalculateDistance(lat, lng,
				driver.CurrentLocation.Latitude(), driver.CurrentLocation.Longitude()),
		})
	}
	return results, cursor.Err()
}

func (r *driverRepository) findOne(ctx context.Context, filter bson.M) (*models.Driver, error) {
	var driver models.Driver
	err := r.collection.FindOne(ctx, filter).Decode(&driver)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return &driver, nil
}
