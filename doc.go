// Package courier is a cross-service job dispatch layer over an external
// message broker. A producing process enqueues work addressed to a logical
// handler name; the consuming process — often a different deployable —
// resolves that name against its local registry and executes the handler.
// The two sides share only the envelope wire format, never code.
//
// Courier is designed as a library, not a service. Import it, configure a
// transport, and register handlers or dispatch proxies as ordinary Go
// functions.
//
// # Quick Start
//
//	reg := job.NewRegistry()
//	job.Register(reg, job.NewDefinition("EmailWorker",
//	    func(ctx context.Context, msg SendEmail) error { ... },
//	    job.WithQueue("email"),
//	))
//
//	tr := memq.New()
//	p, err := producer.New(reg, tr)
//	if err != nil { ... }
//	p.Dispatch(ctx, "EmailWorker", job.MustArgs(SendEmail{To: "a@example.org"}))
//
// # Architecture
//
// The producer side resolves per-handler dispatch defaults (target queue,
// retry policy), rewrites registered proxy names to their real targets,
// runs the envelope through an ordered transform chain, and publishes
// through a Transport. The consumer side runs a fixed-size worker pool
// that drains one subscription per queue and resolves every delivery
// exactly once: ack, requeue, or reject to the dead letter stream.
//
// Delivery semantics are at-least-once; handlers must be idempotent or
// tolerant of redelivery. Durability belongs to the broker — no entity
// is persisted by this core.
package courier
