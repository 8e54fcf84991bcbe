package house

import "errors"

var (
	// ErrHouseNotFound indicates the requested house does not exist.
	ErrHouseNotFound = errors.New("house: not found")

	// ErrHouseExists indicates a house with the same ID already exists.
	ErrHouseExists = errors.New("house: already exists")

	// ErrNotMember indicates the user is not a member of the house.
	ErrNotMember = errors.New("house: user is not a member")
)
