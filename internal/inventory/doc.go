// Package inventory tracks the controllers and components of each house.
//
// Controllers are the field microcontrollers that hold realtime links to
// the relay; components are the devices wired to them. The Registry adds
// an in-memory cache over the repository so command dispatch can resolve
// the target controller for a component without a database round trip.
package inventory
