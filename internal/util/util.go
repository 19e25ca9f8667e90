//go:build !windows

// Package util holds small platform helpers for the command line entry point.
package util

// IsRunFromGUI reports whether the binary was started from a file manager.
// Outside Windows it always returns false.
func IsRunFromGUI() bool {
	return false
}

func HideConsoleWindow() {}
