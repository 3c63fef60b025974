package fieldwork

// Role identifies what an actor is allowed to do.
type Role string

const (
	// RoleAdmin is office staff: conversion, SOP review, dispatch and payouts.
	RoleAdmin Role = "admin"
	// RoleScholar is a field worker.
	RoleScholar Role = "scholar"
	// RoleSystem is the engine acting on its own behalf (reconciliation,
	// reactors). It is privileged like an admin.
	RoleSystem Role = "system"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleScholar, RoleSystem:
		return true
	}
	return false
}

// Actor is whoever initiates an action.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// AdminActor returns an admin actor.
func AdminActor(id string) Actor { return Actor{ID: id, Role: RoleAdmin} }

// ScholarActor returns a field worker actor.
func ScholarActor(id string) Actor { return Actor{ID: id, Role: RoleScholar} }

// SystemActor returns the engine's own actor.
func SystemActor() Actor { return Actor{ID: "system", Role: RoleSystem} }

// Privileged reports whether the actor may perform admin-only actions.
func (a Actor) Privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}
