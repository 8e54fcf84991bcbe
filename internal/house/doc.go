// Package house manages houses and their memberships.
//
// A house is the unit of access control for the relay: a mobile client
// may open a realtime connection to a house only if it is a member, and
// every controller and component belongs to exactly one house.
package house
