// Package tender implements the access actions on tender documents that are
// routed through the dispatcher.
package tender

import (
	"context"
	"errors"
	"slices"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"access-api/result"
)

// Status is the lifecycle stage of a tender or lot.
type Status string

const (
	StatusPlanning     Status = "planning"
	StatusPlanned      Status = "planned"
	StatusActive       Status = "active"
	StatusCancelled    Status = "cancelled"
	StatusUnsuccessful Status = "unsuccessful"
	StatusComplete     Status = "complete"
	StatusWithdrawn    Status = "withdrawn"
)

var statuses = []Status{StatusPlanning, StatusPlanned, StatusActive, StatusCancelled, StatusUnsuccessful, StatusComplete, StatusWithdrawn}

// StatusDetails refines Status.
type StatusDetails string

const (
	DetailsEmpty         StatusDetails = "empty"
	DetailsPlanning      StatusDetails = "planning"
	DetailsClarification StatusDetails = "clarification"
	DetailsNegotiation   StatusDetails = "negotiation"
	DetailsTendering     StatusDetails = "tendering"
	DetailsSuspended     StatusDetails = "suspended"
	DetailsAuction       StatusDetails = "auction"
	DetailsAwarding      StatusDetails = "awarding"
	DetailsAwarded       StatusDetails = "awarded"
	DetailsEvaluation    StatusDetails = "evaluation"
	DetailsCancellation  StatusDetails = "cancellation"
	DetailsUnsuccessful  StatusDetails = "unsuccessful"
	DetailsComplete      StatusDetails = "complete"
)

var statusDetails = []StatusDetails{
	DetailsEmpty, DetailsPlanning, DetailsClarification, DetailsNegotiation, DetailsTendering, DetailsSuspended,
	DetailsAuction, DetailsAwarding, DetailsAwarded, DetailsEvaluation, DetailsCancellation, DetailsUnsuccessful,
	DetailsComplete,
}

func knownStatus(s Status) bool         { return slices.Contains(statuses, s) }
func knownDetails(s StatusDetails) bool { return slices.Contains(statusDetails, s) }

// Lot is one lot of a tender.
type Lot struct {
	ID            string        `json:"id"`
	Status        Status        `json:"status"`
	StatusDetails StatusDetails `json:"statusDetails"`
}

// Tender is the access record of one tender: who owns it and which state it
// is in.
type Tender struct {
	Cpid          string        `json:"cpid"`
	Ocid          string        `json:"ocid"`
	Owner         string        `json:"owner"`
	Token         string        `json:"token"`
	Status        Status        `json:"status"`
	StatusDetails StatusDetails `json:"statusDetails"`
	Lots          []Lot         `json:"lots"`

	// etag is the version the tender was read at. Saving with a stale etag
	// fails with ErrConflict.
	etag azcore.ETag
}

// ErrConflict is returned by Repository.Save when the tender was changed
// since it was read.
var ErrConflict = errors.New("tender was modified concurrently")

// Repository loads and stores tenders by (cpid, ocid).
type Repository interface {
	Find(ctx context.Context, cpid, ocid string) (result.Option[Tender], error)
	Save(ctx context.Context, t Tender) error
}

// State is the public view of a tender or lot state.
type State struct {
	Status        Status        `json:"status"`
	StatusDetails StatusDetails `json:"statusDetails"`
}

func (t Tender) State() State {
	return State{Status: t.Status, StatusDetails: t.StatusDetails}
}

func (l Lot) State() State {
	return State{Status: l.Status, StatusDetails: l.StatusDetails}
}
