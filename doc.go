// Package actiongate provides an approval-and-execution gate for outbound
// actions proposed by automated collaborators.
//
// Requests enter at intake, and flow through a human approval stage before
// an execution engine performs (or simulates) the action. The package comes
// with pluggable service layers such as:
//
//   - orchestrator - the polling control loop that sweeps the pipeline
//   - executor    - precondition gating and handler dispatch
//   - ratelimit   - sliding-window limits per action category
//   - audit       - append-only record of every decision and attempt
//
// Actiongate is designed to be embedded in host applications. End-users
// typically interact via the high-level Service façade exposed by the root
// package:
//
//	srv := actiongate.New()
//	id, _ := srv.Intake().Enqueue(ctx, request.ActionEmailSend,
//		request.PriorityMedium, &request.EmailPayload{To: "ops@example.com"})
//	srv.Runtime().Start(ctx)
//	_ = srv.Approve(ctx, id, "alice", "looks good")
//
// For more details see the README and individual sub-packages.
package actiongate
