package reconcile

import "errors"

// Response messages, returned to Stripe verbatim.
const (
	MsgMethodNotAllowed    = "Method not allowed"
	MsgMissingSignature    = "Missing stripe-signature header"
	MsgMissingBody         = "Missing raw body for signature verification"
	MsgBodyTooLarge        = "Request body too large"
	MsgNotConfigured       = "Stripe is not configured"
	MsgSecretNotConfigured = "Webhook secret is not configured"
	MsgInvalidSignature    = "Webhook signature verification failed"
	MsgInvalidJSON         = "Invalid JSON payload"
	MsgMissingData         = "Webhook event is missing data"
	MsgHandlerFailed       = "Webhook handler failed"
)

var (
	ErrMissingData      = errors.New("webhook event has no data object")
	ErrMalformedObject  = errors.New("webhook data object cannot be decoded")
	ErrCustomerDeleted  = errors.New("stripe customer is deleted")
	ErrCustomerMissing  = errors.New("stripe customer is missing")
	ErrNoOwner          = errors.New("stripe customer carries no userId or organizationId")
	ErrNoItems          = errors.New("stripe subscription has no items")
	ErrUnknownPrice     = errors.New("stripe price is not mapped to a plan")
	ErrMissingReference = errors.New("webhook object has no id")
)
