// Package flagx lets several flag sets share one command line. The server
// locates its JSON config file first and parses its own flags afterwards;
// each pass only sees the flags it declares.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// ConfigEnvVar names the environment variable consulted when no config
// file flag is given.
const ConfigEnvVar = "DOCTREE_CONFIG"

// FilterArgs keeps the allowed flags of args together with their values, in
// order. Flags match with one or two leading dashes, so allowing "-config"
// also admits "--config". A value is taken from "-flag=value" or from the
// next argument unless that starts with a dash; negative numbers therefore
// need the "=" form. Scanning stops at "--".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[strings.TrimLeft(f, "-")] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}

		name, inline := splitFlag(arg)
		if _, ok := allowed[name]; !ok || name == "" {
			continue
		}
		filtered = append(filtered, arg)

		if !inline && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// splitFlag returns the name of a "-name", "--name" or "-name=value"
// argument and whether the value is inline. name is empty for non-flags.
func splitFlag(arg string) (name string, inline bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false
	}
	name, _, inline = strings.Cut(strings.TrimPrefix(arg[1:], "-"), "=")
	return name, inline
}

// ConfigPath returns the JSON config file named by -c or -config in args;
// the last occurrence wins. Without either flag it falls back to
// getenv(ConfigEnvVar), which may be empty.
func ConfigPath(args []string, getenv func(string) string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to the JSON config file")
	fs.StringVar(&path, "c", "", "path to the JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	if path == "" && getenv != nil {
		path = getenv(ConfigEnvVar)
	}
	return path
}

// JsonConfigFlags is ConfigPath over the process arguments and environment.
func JsonConfigFlags() string {
	return ConfigPath(os.Args[1:], os.Getenv)
}
