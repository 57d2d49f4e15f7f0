// Package command executes device RPCs and keeps the stored device state in
// step with what the firmware reports.
//
// When a firmware function answers -99 the command was accepted but its
// effect on device state is unknown. Service.Run then pulls the state with
// a second call and persists it. A failed pull is logged and the device
// record is left untouched; the original command still counts as accepted.
//
// Commands for the same device are serialised; different devices proceed
// in parallel.
package command
