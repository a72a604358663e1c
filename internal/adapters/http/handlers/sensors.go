package handlers

import (
	"context"
	"fmt"

	"hostelpg/internal/core/domain"
	"hostelpg/internal/pkg/geofence"
)

// Device sensor readings travel in the request body; these adapt them to
// the service's sensor interfaces.

// LocationReading is the device's location capture outcome
type LocationReading struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// LocationErrorPermissionDenied and LocationErrorHardware are the accepted locationError values
const (
	LocationErrorPermissionDenied = "permission_denied"
	LocationErrorHardware         = "hardware"
)

// SensorRequest carries the sensor outcomes of a roll-call or movement
type SensorRequest struct {
	Location      *LocationReading `json:"location"`
	LocationError string           `json:"location_error"`
	Biometric     *bool            `json:"biometric"`
}

// bodyLocation implements services.LocationProvider
type bodyLocation struct {
	reading   *LocationReading
	errorCode string
}

func (l bodyLocation) CurrentPosition(ctx context.Context) (geofence.Point, error) {
	switch l.errorCode {
	case "":
	case LocationErrorPermissionDenied:
		return geofence.Point{}, domain.ErrLocationPermissionDenied
	case LocationErrorHardware:
		return geofence.Point{}, domain.ErrLocationHardware
	default:
		return geofence.Point{}, fmt.Errorf("%w: %s", domain.ErrLocationHardware, l.errorCode)
	}
	if l.reading == nil || l.reading.Latitude == nil || l.reading.Longitude == nil {
		return geofence.Point{}, domain.ErrLocationHardware
	}
	return geofence.Point{Latitude: *l.reading.Latitude, Longitude: *l.reading.Longitude}, nil
}

// bodyBiometric implements services.BiometricVerifier
type bodyBiometric struct {
	result *bool
}

func (b bodyBiometric) Authenticate(ctx context.Context) (bool, error) {
	if b.result == nil {
		return false, fmt.Errorf("biometric result missing")
	}
	return *b.result, nil
}

func (r SensorRequest) location() bodyLocation {
	return bodyLocation{reading: r.Location, errorCode: r.LocationError}
}

func (r SensorRequest) biometric() bodyBiometric {
	return bodyBiometric{result: r.Biometric}
}
