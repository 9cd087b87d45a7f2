package services

import (
	"context"
	"fmt"
	"slices"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/utils"
	"goride/pkg/geo"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeospatialIndex answers "which drivers are near this point". Entries stay
// in the index until the driver is explicitly removed.
type GeospatialIndex interface {
	UpdateDriverLocation(ctx context.Context, driverID primitive.ObjectID, lat, lng float64) error
	RemoveDriver(ctx context.Context, driverID primitive.ObjectID) error
	// NearbyDrivers returns drivers within radiusKm, nearest first. A
	// non-empty vehicles list restricts the vehicle class; predicate, when
	// set, filters the rest.
	NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int, vehicles []models.VehicleClass, predicate func(*models.Driver) bool) ([]*models.DriverDistance, error)
}

// repositoryGeoIndex delegates to the store's own spatial query, so the
// driver record is the index and updates need no extra bookkeeping.
type repositoryGeoIndex struct {
	drivers interfaces.DriverRepository
}

func NewRepositoryGeoIndex(drivers interfaces.DriverRepository) GeospatialIndex {
	return &repositoryGeoIndex{drivers: drivers}
}

func (r *repositoryGeoIndex) UpdateDriverLocation(context.Context, primitive.ObjectID, float64, float64) error {
	return nil
}

func (r *repositoryGeoIndex) RemoveDriver(context.Context, primitive.ObjectID) error {
	return nil
}

func (r *repositoryGeoIndex) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int, vehicles []models.VehicleClass, predicate func(*models.Driver) bool) ([]*models.DriverDistance, error) {
	// vehicle class is filtered by the store, so its limit only counts
	// drivers that can serve the request
	found, err := r.drivers.FindNearbyAvailable(ctx, lat, lng, radiusKm, vehicles, limit)
	if err != nil {
		return nil, err
	}
	return filterCandidates(found, limit, nil, predicate), nil
}

// pointGeoIndex keeps driver coordinates in a geo.Index and joins the hits
// back to driver records.
type pointGeoIndex struct {
	index   geo.Index
	drivers interfaces.DriverRepository
}

func NewPointGeoIndex(index geo.Index, drivers interfaces.DriverRepository) GeospatialIndex {
	return &pointGeoIndex{index: index, drivers: drivers}
}

func (p *pointGeoIndex) UpdateDriverLocation(ctx context.Context, driverID primitive.ObjectID, lat, lng float64) error {
	if err := p.index.Upsert(ctx, driverID.Hex(), lat, lng); err != nil {
		return fmt.Errorf("failed to index driver location: %w", err)
	}
	return nil
}

func (p *pointGeoIndex) RemoveDriver(ctx context.Context, driverID primitive.ObjectID) error {
	if err := p.index.Remove(ctx, driverID.Hex()); err != nil {
		return fmt.Errorf("failed to remove driver from index: %w", err)
	}
	return nil
}

func (p *pointGeoIndex) NearbyDrivers(ctx context.Context, lat, lng, radiusKm float64, limit int, vehicles []models.VehicleClass, predicate func(*models.Driver) bool) ([]*models.DriverDistance, error) {
	entries, err := p.index.Nearby(ctx, geo.Query{Lat: lat, Lng: lng, RadiusKm: radiusKm})
	if err != nil {
		return nil, fmt.Errorf("failed to query driver index: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]primitive.ObjectID, 0, len(entries))
	for _, e := range entries {
		id, err := primitive.ObjectIDFromHex(e.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	drivers, err := p.drivers.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Driver, len(drivers))
	for _, d := range drivers {
		byID[d.ID.Hex()] = d
	}

	// entries are already ordered by distance
	candidates := make([]*models.DriverDistance, 0, len(entries))
	for _, e := range entries {
		d, ok := byID[e.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, &models.DriverDistance{Driver: d, DistanceKm: e.DistanceKm})
	}
	return filterCandidates(candidates, limit, vehicles, predicate), nil
}

func filterCandidates(candidates []*models.DriverDistance, limit int, vehicles []models.VehicleClass, predicate func(*models.Driver) bool) []*models.DriverDistance {
	out := make([]*models.DriverDistance, 0, len(candidates))
	for _, c := range candidates {
		if len(vehicles) > 0 && !slices.Contains(vehicles, c.Driver.VehicleClass) {
			continue
		}
		if predicate != nil && !predicate(c.Driver) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// clampRadius bounds a requested search radius.
func clampRadius(radiusKm float64) float64 {
	if radiusKm <= 0 {
		return utils.DefaultSearchRadius
	}
	if radiusKm > utils.MaxSearchRadius {
		return utils.MaxSearchRadius
	}
	return radiusKm
}
