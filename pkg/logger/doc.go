// Package logger is a thin factory around log/slog: functional options for
// format, level and static attributes, helper attribute constructors for the
// billing domain, and transparent injection of context values into every
// record.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, "subkit"),
//		logger.WithContextValue("request_id", ctxKeyRequestID),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "subscription charged",
//		logger.SubscriptionID(sub.ID),
//		logger.Plan(plan.Codename),
//	)
//
// Attribute constructors such as Error and UserID return an empty Attr for
// nil input, so they can be passed unconditionally.
package logger
