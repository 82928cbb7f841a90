// Package trace is the event log for tmachine.
//
// Tracing follows a target string from the CLI through registry
// initialization, parsing, lookup and code emission.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	tmachine resolve --trace=- --trace-level=detail "llvm -mcpu=skylake"
//
// # Tracers
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: writes each event immediately (file or stderr)
//   - RingTracer: keeps the last N events in memory
//   - MultiTracer: fans out to several tracers
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only explicit dumps
//   - LevelPhase: driver commands
//   - LevelDetail: stages (init, parse, lookup, emit)
//   - LevelDebug: everything including per-file events
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "lookup", parentID)
//	defer span.End("")
package trace
