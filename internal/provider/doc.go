// Package provider routes logical device operations to cloud-provider
// implementations and interprets their numeric return codes.
//
// A provider (for example "particle") registers a Capability for the
// "_default_" model and, optionally, more specific capabilities for
// individual chip models. Dispatch looks up the model-specific capability
// first and falls back to the provider default. An operation nobody
// supports yields a nil Outcome, never an error: callers decide whether a
// missing answer matters.
//
// # Outcomes
//
// Run operations return an Outcome carrying the firmware return value.
// The value -99 (AmbiguousReturn) means the device accepted the command
// but could not confirm the resulting state; the command service resolves
// it by pulling state. Other negative values are translated through
// per-function tables registered on a Translator.
package provider
