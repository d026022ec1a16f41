package model

import "time"

// Result is the outcome of one optimization computation.
type Result struct {
	OptimalPrice       float64
	MaxProfit          float64
	ProfitFunction     string
	DerivativeFunction string
	// Verified is false when no stationary point passed the concavity test
	// and the optimum is the best of the unverified candidates.
	Verified bool
}

// Request carries the user input for creating or updating a record.
type Request struct {
	Name           string
	CostFunction   string
	DemandFunction string
}

// Record is a named optimization stored per owner.
type Record struct {
	ID             string
	OwnerID        string
	Name           string
	CostFunction   string
	DemandFunction string
	OptimalPrice   float64
	MaxProfit      float64
	ProfitFunction string
	Verified       bool
	ChartKey       string
	ChartURL       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EventType names what happened to a record.
type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
	EventDeleted EventType = "DELETED"
)
