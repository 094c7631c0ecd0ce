// Package framework contains the low-level test-execution machinery that is
// reused by every suite in this harness, with no knowledge of what is being
// tested.
//
// The general model is:
//
// 1. The harness runs outside of "go test", as its own binary. A tree of named
// tests is executed through Context, which plays the same role as Go's
// *testing.T: tests can nest subtests, accumulate failures, skip themselves,
// and log debug output that is captured per test.
//
// 2. Each finished test produces a TestResult. Results are consumed by a
// renderer: the console renderer in this package, or any external one fed by
// WriteJSON. Failed tests can carry attachments (request/response snapshots,
// contract violations) so a renderer can show full failure context without
// re-running anything.
//
// 3. Regex filters decide which tests in the tree actually execute.
//
// The domain-specific code that knows about the service under test lives in
// the suite packages, layered on top of this one.
package framework
