// Package subscription provides the domain model for recurring
// subscriptions: purchasable plans with per-resource quotas, subscriptions
// bounded by begin/end timestamps, and append-only usage records.
//
// A Plan is read-only configuration loaded through a PlansSource into a
// Catalog. Blank periods are resolved once at load time: a plan without a
// charge period is a one-time purchase, a quota without a recharge period
// recharges on every plan charge, and a quota without a burn time forfeits
// each grant right before the next recharge.
//
// A Subscription is extended in place: Prolong advances the end date by one
// charge period and the caller persists the result only after the renewal
// charge succeeds. Stop terminates it immediately.
//
//	catalog, err := subscription.NewCatalog(ctx, subscription.NewYAMLSource("plans.yaml"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	plan, _ := catalog.Get("pro")
//	sub := subscription.New(userID, plan, time.Now().UTC())
//
// Balance accounting over quotas and usage lives in package quota; payment
// handling lives in packages payment and provider.
package subscription
