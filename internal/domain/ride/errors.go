package ride

import "errors"

var (
	ErrRideNotFound       = errors.New("ride not found")
	ErrDuplicatePassenger = errors.New("passenger already joined this ride")
	ErrRideFull           = errors.New("ride is full")
	ErrRideNotJoinable    = errors.New("ride is not accepting passengers")
	ErrRideConflict       = errors.New("concurrent ride exists for this route and window")
)
