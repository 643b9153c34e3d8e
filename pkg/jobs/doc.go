// Package jobs contains the background workers of the billing core: the
// recurring charge scheduler and the payment reconciliation job, plus the
// cron runner that drives them.
//
// ChargeRecurring walks subscriptions approaching their next charge date and
// makes at most one offline charge attempt per window of its schedule. A
// schedule is a set of negative offsets from the charge date; consecutive
// offsets bound the windows and the charge date closes the last one:
//
//	job := jobs.NewChargeRecurring(tx, subs, catalog, registry, transitions,
//		jobs.WithChargeNotifier(notifier))
//
// Reconcile re-checks recent pending payments against their providers,
// settling charges whose completion webhook got lost.
//
// Both are registered on a Runner with standard cron expressions:
//
//	runner := jobs.NewRunner(jobs.WithRunnerLogger(logger))
//	_ = runner.Register("*/10 * * * *", job)
//	_ = runner.Register("*/15 * * * *", reconcile)
//	go runner.Start(ctx)
package jobs
