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

type rideRepository struct {
	collection *mongo.Collection
}

func NewRideRepository(db *mongo.Database) interfaces.RideRepository {
	return &rideRepository{
		collection: db.Collection(database.CollectionRides),
	}
}

func (r *rideRepository) Create(ctx context.Context, ride *models.Ride) error {
	if ride.ID.IsZero() {
		ride.ID = primitive.NewObjectID()
	}
	now := time.Now()
	ride.CreatedAt = now
	ride.UpdatedAt = now
	if ride.RequestedAt.IsZero() {
		ride.RequestedAt = now
	}

	_, err := r.collection.InsertOne(ctx, ride)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicate
		}
		return fmt.Errorf("failed to create ride: %w", err)
	}
	return nil
}

func (r *rideRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *rideRepository) GetActiveByRider(ctx context.Context, riderID primitive.ObjectID) (*models.Ride, error) {
	return r.findOne(ctx, bson.M{
		"rider_id": riderID,
		"status":   bson.M{"$in": models.ActiveRideStatuses},
	})
}

func (r *rideRepository) GetActiveByDriver(ctx context.Context, driverID primitive.ObjectID) (*models.Ride, error) {
	return r.findOne(ctx, bson.M{
		"driver_id": driverID,
		"status":    bson.M{"$in": []models.RideStatus{models.RideStatusAccepted, models.RideStatusStarted}},
	})
}

func (r *rideRepository) ConditionalUpdate(ctx context.Context, id primitive.ObjectID, cond models.RideCondition, update models.RideUpdate) (*models.Ride, bool, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ride models.Ride
	err := r.collection.FindOneAndUpdate(ctx, rideConditionFilter(id, cond), rideUpdateDocument(update, time.Now()), opts).Decode(&ride)
	if err == nil {
		return &ride, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update ride: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (r *rideRepository) FindRequestedNear(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]*models.Ride, error) {
	filter := bson.M{
		"pickup_location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        models.GeoJSONPoint,
					"coordinates": []float64{lng, lat},
				},
				"$maxDistance": radiusKm * 1000,
			},
		},
		"status":    models.RideStatusRequested,
		"driver_id": nil,
	}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	rides, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby rides: %w", err)
	}
	return rides, nil
}

func (r *rideRepository) FindRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*models.Ride, error) {
	filter := bson.M{
		"status":       models.RideStatusRequested,
		"requested_at": bson.M{"$lt": cutoff},
	}

	opts := options.Find().SetSort(bson.D{{Key: "requested_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	rides, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired ride requests: %w", err)
	}
	return rides, nil
}

func (r *rideRepository) List(ctx context.Context, filter models.RideHistoryFilter) ([]*models.Ride, int64, error) {
	query := bson.M{}
	if filter.RiderID != nil {
		query["rider_id"] = *filter.RiderID
	}
	if filter.DriverID != nil {
		query["driver_id"] = *filter.DriverID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(filter.Offset))
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	rides, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	return rides, total, nil
}

func (r *rideRepository) findOne(ctx context.Context, filter bson.M) (*models.Ride, error) {
	var ride models.Ride
	err := r.collection.FindOne(ctx, filter).Decode(&ride)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return &ride, nil
}

func (r *rideRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Ride, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rides []*models.Ride
	for cursor.Next(ctx) {
		var ride models.Ride
		if err := cursor.Decode(&ride); err != nil {
			return nil, fmt.Errorf("failed to decode ride: %w", err)
		}
		rides = append(rides, &ride)
	}
	return rides, cursor.Err()
}

func rideConditionFilter(id primitive.ObjectID, cond models.RideCondition) bson.M {
	filter := bson.M{"_id": id}
	switch len(cond.Statuses) {
	case 0:
	case 1:
		filter["status"] = cond.Statuses[0]
	default:
		filter["status"] = bson.M{"$in": cond.Statuses}
	}
	if cond.Unassigned {
		filter["driver_id"] = nil
	}
	if cond.DriverID != nil {
		filter["driver_id"] = *cond.DriverID
	}
	if cond.Unrated {
		filter["driver_rating"] = nil
	}
	return filter
}

func rideUpdateDocument(u models.RideUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if u.Status != "" {
		set["status"] = u.Status
	}
	if u.ClearDriver {
		set["driver_id"] = nil
	} else if u.DriverID != nil {
		set["driver_id"] = *u.DriverID
	}
	if u.ClearAcceptedAt {
		set["accepted_at"] = nil
	} else if u.AcceptedAt != nil {
		set["accepted_at"] = *u.AcceptedAt
	}
	if u.StartedAt != nil {
		set["started_at"] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		set["completed_at"] = *u.CompletedAt
	}
	if u.CancelledAt != nil {
		set["cancelled_at"] = *u.CancelledAt
	}
	if u.FinalFare != nil {
		set["final_fare"] = *u.FinalFare
	}
	if u.FareBreakdown != nil {
		set["fare_breakdown"] = u.FareBreakdown
	}
	if u.CancelledBy != "" {
		set["cancelled_by"] = u.CancelledBy
	}
	if u.CancelledByID != nil {
		set["cancelled_by_id"] = *u.CancelledByID
	}
	if u.CancellationReason != "" {
		set["cancellation_reason"] = u.CancellationReason
	}
	if u.DriverRating != nil {
		set["driver_rating"] = *u.DriverRating
	}
	if u.RatingComment != "" {
		set["rating_comment"] = u.RatingComment
	}
	if u.RatedAt != nil {
		set["rated_at"] = *u.RatedAt
	}
	return bson.M{"$set": set}
}
