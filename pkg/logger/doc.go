// Package logger builds the structured slog loggers used across the billing
// service.
//
// New returns a *slog.Logger configured through functional options. The
// handler is JSON in production and staging and text in development, and it is
// wrapped with LogHandlerDecorator so request-scoped values stored in the
// context (request id, for example) are attached to every record.
//
// Attribute helpers in attr.go keep key names stable between components so a
// webhook failure and the ledger write it triggered can be correlated by
// customer_id and subscription_id:
//
//	log := logger.New(logger.WithEnvironment("production", "billingd"))
//	log.ErrorContext(ctx, "subscription upsert failed",
//	    logger.Component("reconcile"),
//	    logger.CustomerID(customerID),
//	    logger.SubscriptionID(subID),
//	    logger.Error(err),
//	)
//
// Error and the id helpers return an empty slog.Attr for nil or empty values,
// so callers do not need to guard optional fields.
package logger
