package main

import (
	"devenv/cmd" // Import the cmd package which contains the CLI commands and execution logic
)

// main is the program entry point.
// It delegates to cmd.Execute() which handles command line argument parsing and execution.
//
// devenv provisions a portable developer toolchain on a machine without a
// system-wide installer:
//   - Reads a JSON or YAML manifest of tools (name, version, url, marker file, optional sha256)
//   - Downloads each artifact into a content cache, verifying its SHA-256 when one is given
//   - Installs it into a per-user directory with the procedure for its kind: plain archive,
//     self-extracting executable, toolchain bootstrap installer or portable editor
//   - Registers the installed executable directories on the user's persistent PATH
//     and creates launch shortcuts for the shell, the editor and the VCS terminal
//
// Error handling strategy:
//   - A tool that fails to download, verify or install is reported and the run moves on
//   - A broken PATH store, an unresolvable install location or a bad explicit manifest
//     abort the run and exit with status 1
func main() {
	cmd.Execute()
}
