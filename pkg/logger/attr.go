package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// EventType records the provider event type under the key "event_type".
func EventType(eventType string) slog.Attr {
	return slog.String("event_type", eventType)
}

// EventID records the provider event id under the key "event_id".
func EventID(id string) slog.Attr {
	return optionalString("event_id", id)
}

// CustomerID records the remote customer id under the key "customer_id".
func CustomerID(id string) slog.Attr {
	return optionalString("customer_id", id)
}

// SubscriptionID records the remote subscription id under the key "subscription_id".
func SubscriptionID(id string) slog.Attr {
	return optionalString("subscription_id", id)
}

func UserID(id string) slog.Attr {
	return optionalString("user_id", id)
}

func OrganizationID(id string) slog.Attr {
	return optionalString("organization_id", id)
}

func ServiceID(id string) slog.Attr {
	return optionalString("service_id", id)
}

func RequestID(id string) slog.Attr {
	return optionalString("request_id", id)
}

// Operation records a gateway or store operation name under the key "operation".
func Operation(name string) slog.Attr {
	return slog.String("operation", name)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// optionalString skips empty values so optional ids do not produce noise.
func optionalString(key, value string) slog.Attr {
	if value == "" {
		return slog.Attr{}
	}
	return slog.String(key, value)
}
