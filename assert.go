//go:build !xeventrelease

package xevent

// panicOnRecursiveDispatch makes recursive dispatch a hard failure. Build
// with -tags xeventrelease to turn it into a returned error instead.
const panicOnRecursiveDispatch = true
