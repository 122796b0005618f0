package engine

import (
	"fmt"

	"homeline/internal/domain"
)

// Transition graphs are adjacency tables checked centrally here; call sites
// never test edges themselves.

var leadGraph = map[string][]string{
	domain.LeadNew:         {domain.LeadContacted},
	domain.LeadContacted:   {domain.LeadQualified},
	domain.LeadQualified:   {domain.LeadNegotiating},
	domain.LeadNegotiating: {domain.LeadConverted, domain.LeadLost},
}

var taskGraph = map[string][]string{
	domain.TaskPending:    {domain.TaskInProgress, domain.TaskCompleted, domain.TaskCancelled},
	domain.TaskInProgress: {domain.TaskCompleted, domain.TaskCancelled},
}

var dealGraph = map[string][]string{
	domain.DealNegotiation:       {domain.DealContractSigned, domain.DealCancelled},
	domain.DealContractSigned:    {domain.DealDepositReceived, domain.DealCancelled},
	domain.DealDepositReceived:   {domain.DealPaymentInProgress, domain.DealCancelled},
	domain.DealPaymentInProgress: {domain.DealCompleted, domain.DealCancelled},
}

// TransitionError reports an edge that is not in the entity's graph. The
// entity is left unchanged.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition %s -> %s", e.Entity, e.From, e.To)
}

// UnauthorizedError reports an actor lacking the role for an override edge.
type UnauthorizedError struct {
	Actor  string
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %s: %s", e.Actor, e.Reason)
}

func edgeAllowed(graph map[string][]string, from, to string) bool {
	for _, next := range graph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ensureLeadTransition validates a lead edge. Privileged roles may jump from
// NEW directly to any status (manual override for imported or stale leads).
func ensureLeadTransition(from, to, actorRole string) error {
	if edgeAllowed(leadGraph, from, to) {
		return nil
	}
	if from == domain.LeadNew && domain.ValidLeadStatus(to) {
		if actorRole == domain.RoleOwner || actorRole == domain.RoleAdmin {
			return nil
		}
		return &UnauthorizedError{Reason: fmt.Sprintf("role %s cannot override lead status %s -> %s", actorRole, from, to)}
	}
	return &TransitionError{Entity: "lead", From: from, To: to}
}

func ensureTaskTransition(from, to string) error {
	if edgeAllowed(taskGraph, from, to) {
		return nil
	}
	return &TransitionError{Entity: "task", From: from, To: to}
}

func ensureDealTransition(from, to string) error {
	if edgeAllowed(dealGraph, from, to) {
		return nil
	}
	return &TransitionError{Entity: "deal", From: from, To: to}
}
