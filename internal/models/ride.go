package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type RideClass string

const (
	RideStatusRequested RideStatus = "REQUESTED"
	RideStatusAccepted  RideStatus = "ACCEPTED"
	RideStatusStarted   RideStatus = "STARTED"
	RideStatusCompleted RideStatus = "COMPLETED"
	RideStatusCancelled RideStatus = "CANCELLED"

	RideClassEconomy RideClass = "economy"
	RideClassComfort RideClass = "comfort"
	RideClassPremium RideClass = "premium"
	RideClassXL      RideClass = "xl"
)

// ActiveRideStatuses are the non-terminal statuses.
var ActiveRideStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusAccepted,
	RideStatusStarted,
}

func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

func (s RideStatus) IsValid() bool {
	switch s {
	case RideStatusRequested, RideStatusAccepted, RideStatusStarted, RideStatusCompleted, RideStatusCancelled:
		return true
	}
	return false
}

func (c RideClass) IsValid() bool {
	switch c {
	case RideClassEconomy, RideClassComfort, RideClassPremium, RideClassXL:
		return true
	}
	return false
}

type CancelActor string

const (
	CancelActorRider  CancelActor = "rider"
	CancelActorDriver CancelActor = "driver"
	CancelActorSystem CancelActor = "system"
)

type Ride struct {
	ID                  primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RiderID             primitive.ObjectID  `json:"rider_id" bson:"rider_id"`
	DriverID            *primitive.ObjectID `json:"driver_id,omitempty" bson:"driver_id"`
	Status              RideStatus          `json:"status" bson:"status"`
	RideClass           RideClass           `json:"ride_class" bson:"ride_class"`
	PickupLocation      Location            `json:"pickup_location" bson:"pickup_location"`
	DestinationLocation Location            `json:"destination_location" bson:"destination_location"`
	DistanceKm          float64             `json:"distance_km" bson:"distance_km"`
	PassengerCount      int                 `json:"passenger_count" bson:"passenger_count"`
	EstimatedFare       float64             `json:"estimated_fare" bson:"estimated_fare"`
	FinalFare           *float64            `json:"final_fare,omitempty" bson:"final_fare"`
	FareBreakdown       *FareBreakdown      `json:"fare_breakdown,omitempty" bson:"fare_breakdown,omitempty"`
	SurgeMultiplier     float64             `json:"surge_multiplier" bson:"surge_multiplier"`
	RequestedAt         time.Time           `json:"requested_at" bson:"requested_at"`
	AcceptedAt          *time.Time          `json:"accepted_at,omitempty" bson:"accepted_at"`
	StartedAt           *time.Time          `json:"started_at,omitempty" bson:"started_at"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty" bson:"completed_at"`
	CancelledAt         *time.Time          `json:"cancelled_at,omitempty" bson:"cancelled_at"`
	CancelledBy         CancelActor         `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancelledByID       *primitive.ObjectID `json:"cancelled_by_id,omitempty" bson:"cancelled_by_id,omitempty"`
	CancellationReason  string              `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
	DriverRating        *float64            `json:"driver_rating,omitempty" bson:"driver_rating"`
	RatingComment       string              `json:"rating_comment,omitempty" bson:"rating_comment,omitempty"`
	RatedAt             *time.Time          `json:"rated_at,omitempty" bson:"rated_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at" bson:"updated_at"`
}

// IsParticipant reports whether the given profile id is the ride's rider or
// its currently bound driver.
func (r *Ride) IsParticipant(id primitive.ObjectID) bool {
	if r.RiderID == id {
		return true
	}
	return r.DriverID != nil && *r.DriverID == id
}

// RideCondition is the predicate half of a conditional ride update. Empty
// fields are not checked.
type RideCondition struct {
	Statuses   []RideStatus
	DriverID   *primitive.ObjectID
	Unassigned bool
	Unrated    bool
}

// RideUpdate is the mutation half of a conditional ride update.
type RideUpdate struct {
	Status             RideStatus
	DriverID           *primitive.ObjectID
	ClearDriver        bool
	AcceptedAt         *time.Time
	ClearAcceptedAt    bool
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	FinalFare          *float64
	FareBreakdown      *FareBreakdown
	CancelledBy        CancelActor
	CancelledByID      *primitive.ObjectID
	CancellationReason string
	DriverRating       *float64
	RatingComment      string
	RatedAt            *time.Time
}

// Matches evaluates the condition against an in-memory ride.
func (c RideCondition) Matches(r *Ride) bool {
	if len(c.Statuses) > 0 {
		found := false
		for _, s := range c.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.Unassigned && r.DriverID != nil {
		return false
	}
	if c.DriverID != nil && (r.DriverID == nil || *r.DriverID != *c.DriverID) {
		return false
	}
	if c.Unrated && r.DriverRating != nil {
		return false
	}
	return true
}

// Apply mutates r in place. Callers must have checked the condition first.
func (u RideUpdate) Apply(r *Ride, now time.Time) {
	if u.Status != "" {
		r.Status = u.Status
	}
	if u.ClearDriver {
		r.DriverID = nil
	} else if u.DriverID != nil {
		id := *u.DriverID
		r.DriverID = &id
	}
	if u.ClearAcceptedAt {
		r.AcceptedAt = nil
	} else if u.AcceptedAt != nil {
		r.AcceptedAt = u.AcceptedAt
	}
	if u.StartedAt != nil {
		r.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		r.CompletedAt = u.CompletedAt
	}
	if u.CancelledAt != nil {
		r.CancelledAt = u.CancelledAt
	}
	if u.FinalFare != nil {
		fare := *u.FinalFare
		r.FinalFare = &fare
	}
	if u.FareBreakdown != nil {
		r.FareBreakdown = u.FareBreakdown
	}
	if u.CancelledBy != "" {
		r.CancelledBy = u.CancelledBy
	}
	if u.CancelledByID != nil {
		r.CancelledByID = u.CancelledByID
	}
	if u.CancellationReason != "" {
		r.CancellationReason = u.CancellationReason
	}
	if u.DriverRating != nil {
		rating := *u.DriverRating
		r.DriverRating = &rating
	}
	if u.RatingComment != "" {
		r.RatingComment = u.RatingComment
	}
	if u.RatedAt != nil {
		r.RatedAt = u.RatedAt
	}
	r.UpdatedAt = now
}

// RideHistoryFilter selects rides for a participant.
type RideHistoryFilter struct {
	RiderID  *primitive.ObjectID
	DriverID *primitive.ObjectID
	Status   RideStatus
	Limit    int
	Offset   int
}
