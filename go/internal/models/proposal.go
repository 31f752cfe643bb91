package models

import (
	"time"

	"github.com/google/uuid"
)

// ProposalStatus is the resolution state of a match proposal.
type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusReady     ProposalStatus = "ready"
	ProposalStatusCancelled ProposalStatus = "cancelled"
)

// CancelReason records why a proposal was dissolved.
type CancelReason string

const (
	CancelReasonDeclined    CancelReason = "declined"
	CancelReasonTimeout     CancelReason = "timeout"
	CancelReasonMatchFailed CancelReason = "match_failed"
)

// Acceptance is one cohort member's vote on a proposal.
type Acceptance struct {
	Player   Player `json:"player"`
	Accepted bool   `json:"accepted"`
	Declined bool   `json:"declined,omitempty"`
}

// Proposal is a time-boxed offer of a match to a cohort.
type Proposal struct {
	ID            uuid.UUID      `json:"id"`
	Status        ProposalStatus `json:"status"`
	Cohort        []Acceptance   `json:"cohort"`
	AverageRating float64        `json:"average_rating"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	CancelReason  CancelReason   `json:"cancel_reason,omitempty"`
	MatchID       *uuid.UUID     `json:"match_id,omitempty"`
	Version       uint64         `json:"version"`
	RemainingMs   int64          `json:"remaining_ms"`
}

// AcceptedCount returns how many cohort members have accepted.
func (p Proposal) AcceptedCount() int {
	n := 0
	for _, a := range p.Cohort {
		if a.Accepted {
			n++
		}
	}
	return n
}

// Players returns the cohort in formation order.
func (p Proposal) Players() []Player {
	out := make([]Player, len(p.Cohort))
	for i, a := range p.Cohort {
		out[i] = a.Player
	}
	return out
}
