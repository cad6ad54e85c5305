//go:build xeventrelease

package xevent

const panicOnRecursiveDispatch = false
