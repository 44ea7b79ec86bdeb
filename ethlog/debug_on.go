//go:build oamdebug

package ethlog

// debugCompiledIn gates Debugf at compile time: built with -tags
// oamdebug, Debugf lines are emitted; otherwise Debugf is a no-op
// regardless of the configured level.
const debugCompiledIn = true
