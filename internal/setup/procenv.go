package setup

import (
	"path/filepath"
	"runtime"
	"strings"

	"devenv/internal/config"
)

// ProcessEnv returns base (KEY=VALUE pairs, as from os.Environ) with the
// directories of every installed manifest tool prepended to PATH. Compiler
// and module variables are set for the C toolchain and the JavaScript
// runtime when they are installed.
func (o *Orchestrator) ProcessEnv(m *config.Manifest, base []string) []string {
	out := append([]string(nil), base...)

	var dirs []string
	for _, t := range o.installedTools(m) {
		dirs = append(dirs, o.registrar.ToolDirs(t)...)
		root := o.env.InstallRoot(t)
		switch t.Name {
		case "node":
			out = setEnv(out, "NODE_PATH", filepath.Join(root, "node_modules"))
		case "mingw64":
			bin := filepath.Join(root, "bin")
			out = setEnv(out, "CC", filepath.Join(bin, "gcc.exe"))
			out = setEnv(out, "CXX", filepath.Join(bin, "g++.exe"))
		}
	}
	if len(dirs) == 0 {
		return out
	}

	path := strings.Join(dirs, o.env.PathSeparator)
	if current, ok := getEnv(out, "PATH"); ok && current != "" {
		path += o.env.PathSeparator + current
	}
	return setEnv(out, "PATH", path)
}

// envKeyEqual compares variable names; Windows names are case-insensitive.
func envKeyEqual(a, b string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func getEnv(env []string, key string) (string, bool) {
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && envKeyEqual(k, key) {
			return v, true
		}
	}
	return "", false
}

// setEnv replaces key in env, keeping the existing spelling of its name.
func setEnv(env []string, key, value string) []string {
	for i, kv := range env {
		k, _, ok := strings.Cut(kv, "=")
		if ok && envKeyEqual(k, key) {
			env[i] = k + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}
