//go:build windows

package main

import (
	"log/slog"
	"os"

	"github.com/Alia5/padbridge/internal/util"
)

// A double-clicked binary has no arguments; run the bridge instead of
// printing usage into a console that closes immediately.
func init() {
	if !util.IsRunFromGUI() {
		return
	}
	if len(os.Args) >= 2 && os.Args[1] == "run" {
		return
	}
	slog.Info("Detected GUI startup, injecting 'run' argument")
	args := make([]string, 0, len(os.Args)+1)
	args = append(args, os.Args[0], "run")
	args = append(args, os.Args[1:]...)
	os.Args = args
}
