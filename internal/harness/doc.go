// Package harness drives one rust-red process per invocation and
// collects the JSON messages it frames onto stdout.
//
// An invocation launches the target binary (internal/launch), feeds it a
// flow document by file path or over stdin, and then reads stdout under
// a per-read inactivity bound. Chunks are reassembled into frames
// (internal/frame) and decoded messages accumulate until the requested
// count is reached, at which point the child is asked to stop with a
// cooperative interrupt and reaped. A child that closes its output early
// yields a shorter list, not an error; the caller's assertions decide
// whether that is a failure.
//
// Every exit path, including timeouts and decode failures, kills and
// reaps the child before returning. No invocation leaks a process.
package harness
