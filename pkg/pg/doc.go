// Package pg wires PostgreSQL into billingd through the pgx/v5 driver.
//
// It covers pool creation with retries (Connect), goose migrations over an
// embedded or on-disk migration set (Migrate), a readiness probe
// (Healthcheck), transaction helpers used by the ledger and the webhook event
// log (WithTx, AdvisoryXactLock) and error classification helpers.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, db.Migrations, log); err != nil {
//	    return err
//	}
//
// Stores accept the DBTX interface so the same query code runs against a pool
// or inside a transaction.
package pg
