// Package lsq provides prediffer and solver roles that fit y = a + b*x by
// Gauss-Newton over samples sharded across prediffers. It is small enough to
// reason about by hand and exercises every message of the protocol, which
// makes it the reference workload for the CLI and end-to-end tests.
//
// A sample lies in a work domain when its (freq, x) point lies inside the
// box, with x read on the time axis.
package lsq
