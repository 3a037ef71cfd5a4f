// Package thread pins SDL and OpenGL work to the main OS thread.
// See: https://github.com/golang/go/wiki/LockOSThread
package thread

import "github.com/faiface/mainthread"

// Wrap runs f while the main thread serves Call requests.
// Wrap returns when f finishes.
func Wrap(f func()) { mainthread.Run(f) }

// Call executes f on the main thread and blocks until it returns.
func Call(f func()) { mainthread.Call(f) }

// CallErr is Call for functions returning an error.
func CallErr(f func() error) error { return mainthread.CallErr(f) }
