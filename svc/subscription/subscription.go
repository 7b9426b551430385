package subscription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingd/pkg/plans"
)

// Status is the local subscription status vocabulary.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusPastDue  Status = "PAST_DUE"
	StatusCanceled Status = "CANCELED"
	StatusUnpaid   Status = "UNPAID"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid:
		return true
	}
	return false
}

// SyntheticID marks a record that was synthesized on read and never stored.
var SyntheticID = uuid.Nil

// defaultPeriod is the billing window given to synthesized and lazily created
// free subscriptions.
const defaultPeriod = 30 * 24 * time.Hour

// Selector identifies the owner of a subscription. Exactly one field is set.
type Selector struct {
	UserID         string `json:"userId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// ForUser returns a user selector.
func ForUser(id string) Selector { return Selector{UserID: id} }

// ForOrganization returns an organization selector.
func ForOrganization(id string) Selector { return Selector{OrganizationID: id} }

// Normalize trims surrounding whitespace from both ids. A blank id counts as
// absent everywhere a selector is used.
func (s Selector) Normalize() Selector {
	return Selector{
		UserID:         strings.TrimSpace(s.UserID),
		OrganizationID: strings.TrimSpace(s.OrganizationID),
	}
}

// Valid reports whether exactly one of the ids is non-blank.
func (s Selector) Valid() bool {
	n := s.Normalize()
	return (n.UserID == "") != (n.OrganizationID == "")
}

// IsUser reports whether the selector names a user.
func (s Selector) IsUser() bool { return strings.TrimSpace(s.UserID) != "" }

// Key is a stable string for the selector, used for locks and cache keys.
func (s Selector) Key() string {
	n := s.Normalize()
	if n.UserID != "" {
		return "user:" + n.UserID
	}
	return "org:" + n.OrganizationID
}

func (s Selector) String() string { return s.Key() }

// Subscription is the ledger record of one owner.
type Subscription struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               string     `json:"userId,omitempty"`
	OrganizationID       string     `json:"organizationId,omitempty"`
	StripeCustomerID     string     `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string     `json:"stripeSubscriptionId,omitempty"`
	Plan                 plans.Plan `json:"plan"`
	Status               Status     `json:"status"`
	CurrentPeriodStart   time.Time  `json:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time  `json:"currentPeriodEnd"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	CanceledAt           *time.Time `json:"canceledAt,omitempty"`
}

// Selector returns the owner of s.
func (s *Subscription) Selector() Selector {
	return Selector{UserID: s.UserID, OrganizationID: s.OrganizationID}
}

// IsSynthetic reports whether s is the implicit free record of a user.
func (s *Subscription) IsSynthetic() bool {
	return s.ID == SyntheticID
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// EffectivePlan is the plan whose limits apply. Past-due subscriptions keep
// their plan while the provider retries payment; canceled and unpaid ones
// fall back to the free tier.
func (s *Subscription) EffectivePlan() plans.Plan {
	switch s.Status {
	case StatusActive, StatusPastDue:
		return s.Plan
	default:
		return plans.Free
	}
}

// DefaultFreeSubscription synthesizes the implicit record of a user without a
// stored subscription. The period starts at the beginning of now's UTC day.
func DefaultFreeSubscription(userID string, now time.Time) *Subscription {
	start := now.UTC().Truncate(24 * time.Hour)
	return &Subscription{
		ID:                 SyntheticID,
		UserID:             userID,
		Plan:               plans.Free,
		Status:             StatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.Add(defaultPeriod),
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}
}

// UpsertParams describe the desired state of a selector's subscription.
// Empty Stripe ids keep the stored values.
type UpsertParams struct {
	Selector             Selector
	StripeCustomerID     string
	StripeSubscriptionID string
	Plan                 plans.Plan
	Status               Status
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
}

func (p UpsertParams) validate() error {
	if !p.Selector.Valid() {
		return NewInvalidArgument(msgSelectorUpsert)
	}
	if !p.Plan.Valid() {
		return NewInvalidArgument(fmt.Sprintf("Unknown plan %q", string(p.Plan)))
	}
	if !p.Status.Valid() {
		return NewInvalidArgument(fmt.Sprintf("Unknown subscription status %q", string(p.Status)))
	}
	if !p.CurrentPeriodStart.Before(p.CurrentPeriodEnd) {
		return NewInvalidArgument("currentPeriodStart must be before currentPeriodEnd")
	}
	return nil
}

// StatusUpdate changes the status of the record holding StripeSubscriptionID.
// Nil period bounds leave the stored window unchanged.
type StatusUpdate struct {
	StripeSubscriptionID string
	Status               Status
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
}

func (u StatusUpdate) validate() error {
	if strings.TrimSpace(u.StripeSubscriptionID) == "" {
		return NewInvalidArgument("stripeSubscriptionId is required")
	}
	if !u.Status.Valid() {
		return NewInvalidArgument(fmt.Sprintf("Unknown subscription status %q", string(u.Status)))
	}
	return nil
}

// setStatus applies a status and maintains CanceledAt.
func (s *Subscription) setStatus(status Status, now time.Time) {
	s.Status = status
	if status == StatusCanceled {
		if s.CanceledAt == nil {
			t := now
			s.CanceledAt = &t
		}
		return
	}
	s.CanceledAt = nil
}
