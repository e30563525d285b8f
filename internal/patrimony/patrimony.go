// Package patrimony holds the asset-maintenance domain model.
package patrimony

import "time"

type Status string
type Location string
type Problem string

const (
	StatusFinalized   Status = "Finalizada"
	StatusMaintenance Status = "Em manutenção"
	StatusDelivered   Status = "Entregue"
	StatusTotalLoss   Status = "Perda total"
)

const (
	LocationStorage     Location = "Quartinho"
	LocationMaintenance Location = "Manutenção"
	LocationOther       Location = "Outro"
)

const (
	ProblemSlowness   Problem = "Lentidão"
	ProblemNoPower    Problem = "Máquina não liga"
	ProblemOtherIssue Problem = "Outro problema"
)

// Patrimony is one tracked asset. UserID is set at creation and never
// reassigned; RegisteredAt is assigned by the store.
type Patrimony struct {
	ID             string    `json:"id"`
	Number         string    `json:"number"`
	Model          string    `json:"model"`
	RegisteredBy   string    `json:"registeredBy"`
	RegisteredAt   time.Time `json:"registeredAt"`
	Observations   string    `json:"observations"`
	Status         Status    `json:"status"`
	Location       Location  `json:"location"`
	CustomLocation string    `json:"customLocation,omitempty"`
	UserID         string    `json:"userId"`
}

// Fields is the operator-supplied portion of a record. Problem is advisory
// only: it drives the maintenance-tip hint and is never persisted.
type Fields struct {
	Number         string   `json:"number"`
	Model          string   `json:"model"`
	RegisteredBy   string   `json:"registeredBy"`
	Observations   string   `json:"observations"`
	Status         Status   `json:"status"`
	Location       Location `json:"location"`
	CustomLocation string   `json:"customLocation,omitempty"`
	Problem        Problem  `json:"problem,omitempty"`
}

var allowedStatuses = map[Status]struct{}{
	StatusFinalized:   {},
	StatusMaintenance: {},
	StatusDelivered:   {},
	StatusTotalLoss:   {},
}

var allowedLocations = map[Location]struct{}{
	LocationStorage:     {},
	LocationMaintenance: {},
	LocationOther:       {},
}

var allowedProblems = map[Problem]struct{}{
	ProblemSlowness:   {},
	ProblemNoPower:    {},
	ProblemOtherIssue: {},
}
