// Package master drives a distributed least-squares run from the master side.
//
// A [Control] owns two worker pools, the prediffers and the solvers, and
// sequences every message exchanged with them:
//
//	ctl, _ := master.New(prediffers, solvers, master.WithLogger(logger))
//	_ = ctl.SetInitInfo(ctx, info)              // one-time handshake
//	_ = ctl.SetWorkDomainSpec(shape)            // how to cut the full domain
//	_ = ctl.ProcessSteps(ctx, domain.NewSolveStep("cal", payload))
//	_ = ctl.Quit(ctx)
//
// All calls block on network I/O. The master never looks inside worker
// payloads except for the trailing convergence byte of a solver result.
//
// # Lifecycle
//
//	Uninitialized -> Initialized <-> Running
//	      any     -> Failed  (first fatal error)
//	      any     -> Terminated (Quit)
//
// After a failure every operation except Quit returns ErrNotInitialized.
package master
