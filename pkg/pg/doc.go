// Package pg is the postgres persistence layer: the pgx/v5 connection pool,
// goose migrations, and the store implementations backing the subscription,
// usage and payment interfaces.
//
// Bootstrap:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, logger); err != nil {
//		log.Fatal(err)
//	}
//
//	subs := pg.NewSubscriptionStore(pool)
//	payments := pg.NewPaymentStore(pool)
//	tx := pg.NewTransactor(pool)
//
// The Transactor runs payment status transitions inside one transaction with
// FOR UPDATE row locks, so concurrent deliveries of the same webhook
// serialize on the payment row instead of both observing it pending.
package pg
