package inventory

import "errors"

var (
	// ErrControllerNotFound indicates the requested controller does not exist.
	ErrControllerNotFound = errors.New("inventory: controller not found")

	// ErrControllerExists indicates a controller with the same ID already exists.
	ErrControllerExists = errors.New("inventory: controller already exists")

	// ErrControllerNotApproved indicates the controller exists but has not
	// been approved to receive commands.
	ErrControllerNotApproved = errors.New("inventory: controller not approved")

	// ErrComponentNotFound indicates the requested component does not exist.
	ErrComponentNotFound = errors.New("inventory: component not found")

	// ErrComponentExists indicates a component with the same ID already exists.
	ErrComponentExists = errors.New("inventory: component already exists")

	// ErrComponentUnassigned indicates the component has no controller attached.
	ErrComponentUnassigned = errors.New("inventory: component has no controller")
)
