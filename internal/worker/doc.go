// Package worker runs the worker side of the protocol.
//
// A worker reads envelopes from its master connection, hands each one to a
// role handler and writes exactly one reply for every request that expects
// one, in request order. Prediffers and solvers differ only in which
// messages expect a reply:
//
//	                prediffer            solver
//	Init            ack                  ack
//	SetWorkDomain   ack                  ack
//	Step            ack or ParmInfo      ack
//	ParmInfo        -                    no reply (forwarded)
//	GetEquations    GetEquations         no reply (forwarded)
//	Solve           no reply (result)    Solve result
//	EndWorkDomain   ack                  ack
//	Quit            loop ends            loop ends
package worker
