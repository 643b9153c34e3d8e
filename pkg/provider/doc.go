// Package provider abstracts payment providers behind a single interface
// consumed by the charge scheduler, the reconciliation job and the webhook
// endpoint.
//
// Providers are registered once at startup:
//
//	paddleProvider, err := provider.NewPaddleProvider(cfg, transitions)
//	if err != nil {
//		log.Fatal(err)
//	}
//	registry := provider.NewRegistry(paddleProvider)
//
// Each payment row records the codename of the provider that charged it, so
// webhook deliveries and reconciliation always talk to the right upstream.
// The HTTP endpoint from Router mounts one route per provider:
//
//	mux.Mount("/webhooks", provider.Router(registry, transitions, logger))
//
// A malformed or unverifiable webhook payload answers 400 and performs no
// state transition. DummyProvider is the in-memory implementation used in
// development and tests.
package provider
