package models

import (
	"fmt"
	"time"
)

type EventType string

const (
	EventRideRequested  EventType = "ride.requested"
	EventRideAccepted   EventType = "ride.accepted"
	EventRideStarted    EventType = "ride.started"
	EventRideCompleted  EventType = "ride.completed"
	EventRideCancelled  EventType = "ride.cancelled"
	EventRideRated      EventType = "ride.rated"
	EventDriverLocation EventType = "driver.location"
	EventRiderLocation  EventType = "rider.location"
	EventNewRideRequest EventType = "new_ride_request"
)

// Event is what the router fans out to every sink.
type Event struct {
	Type      EventType              `json:"type"`
	RideID    string                 `json:"ride_id,omitempty"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

func NewEvent(eventType EventType, rideID string, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		Type:      eventType,
		RideID:    rideID,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

func RideChannel(rideID string) string {
	return fmt.Sprintf("ride:%s", rideID)
}
