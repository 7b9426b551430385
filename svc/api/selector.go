package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrymomot/billingd/pkg/respond"
	"github.com/dmitrymomot/billingd/svc/subscription"
)

// Owner headers set by the authenticating proxy.
const (
	HeaderUserID         = "X-User-ID"
	HeaderOrganizationID = "X-Organization-ID"
)

const msgMissingOwner = "Either X-User-ID or X-Organization-ID header must be provided"

// SelectorResolver returns the owner a request acts for.
type SelectorResolver func(r *http.Request) (subscription.Selector, error)

// HeaderSelector reads the owner from the owner headers. An organization
// header wins when both are present, since organization scoped requests
// are made by a user acting inside the organization.
func HeaderSelector(r *http.Request) (subscription.Selector, error) {
	if org := strings.TrimSpace(r.Header.Get(HeaderOrganizationID)); org != "" {
		return subscription.ForOrganization(org), nil
	}
	if user := strings.TrimSpace(r.Header.Get(HeaderUserID)); user != "" {
		return subscription.ForUser(user), nil
	}
	return subscription.Selector{}, subscription.NewInvalidArgument(msgMissingOwner)
}

type selectorKey struct{}

func selectorFrom(ctx context.Context) subscription.Selector {
	sel, _ := ctx.Value(selectorKey{}).(subscription.Selector)
	return sel
}

// requireSelector resolves the owner once per request.
func requireSelector(resolve SelectorResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sel, err := resolve(r)
			if err != nil || !sel.Valid() {
				respond.Error(w, http.StatusBadRequest, msgMissingOwner)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), selectorKey{}, sel)))
		})
	}
}
