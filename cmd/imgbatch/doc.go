// Package main hosts the imgbatch CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration, builds the logger, and
// hands off to the internal packages: batch for a single run, watch for
// continuous reruns, preflight for readiness checks, and history for the run
// log. Commands stay thin; behavior belongs in internal/.
package main
