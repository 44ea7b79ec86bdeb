//go:build !oamdebug

package ethlog

const debugCompiledIn = false
