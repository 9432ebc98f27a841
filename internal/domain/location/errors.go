package location

import "errors"

var (
	ErrLocationNotFound = errors.New("location not found")
	ErrDuplicateName    = errors.New("location name already exists")
	ErrInvalidName      = errors.New("invalid location name")
	ErrLocationInUse    = errors.New("location is referenced by active rides")
)
