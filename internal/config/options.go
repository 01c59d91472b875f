package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/build"
	"github.com/ZebulonRouseFrantzich/addonkit/internal/installer"
)

// Option keys. Keys from every layer are normalized to this form.
const (
	KeyTarget   = "target"
	KeyEnsure   = "ensure"
	KeyProxy    = "proxy"
	KeyDistURL  = "dist_url"
	KeyDevDir   = "devdir"
	KeyTarball  = "tarball"
	KeyVerify   = "verify"
	KeyKeyring  = "keyring"
	KeyDebug    = "debug"
	KeyVerbose  = "verbose"
	KeySolution = "solution"
	KeyJobs     = "jobs"
)

// aliases maps alternate spellings to their canonical key.
var aliases = map[string]string{
	"disturl":  KeyDistURL,
	"dist-url": KeyDistURL,
	"dev_dir":  KeyDevDir,
	"dev-dir":  KeyDevDir,
}

// DefaultSolution is the msbuild solution used when none is given.
const DefaultSolution = build.DefaultSolution

// Options are the resolved settings for one command invocation.
type Options struct {
	// Target is the runtime version to build against.
	Target string
	// Ensure skips installing when the version is already present.
	Ensure bool
	// Proxy is the download proxy. Empty means direct access.
	Proxy string
	// DistURL is the distribution server root.
	DistURL string
	// DevDir is the dev directory root. Empty means ~/.node-gyp.
	DevDir string
	// Tarball is a local source tarball used instead of downloading.
	Tarball string
	// Verify checks the tarball against SHASUMS256.txt.
	Verify bool
	// Keyring enables signature checks of SHASUMS256.txt.
	Keyring string
	// Debug selects the Debug build configuration.
	Debug bool
	// Verbose enables debug logging and verbose build output.
	Verbose bool
	// Solution is the msbuild solution file.
	Solution string
	// Jobs is the make job count. Zero leaves it to make.
	Jobs int

	// Extra holds keys with no dedicated field.
	Extra map[string]string
}

// Values is one layer of raw option values keyed by normalized key.
type Values map[string]string

// Defaults returns the built-in option values.
func Defaults() Options {
	return Options{
		DistURL:  installer.DefaultDistURL,
		Solution: DefaultSolution,
	}
}

// NormalizeKey lower-cases key, maps dashes to underscores and resolves
// aliases.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if canonical, ok := aliases[k]; ok {
		return canonical
	}
	k = strings.ReplaceAll(k, "-", "_")
	if canonical, ok := aliases[k]; ok {
		return canonical
	}
	return k
}

// Resolve folds layers over the defaults. Later layers win.
func Resolve(layers ...Values) (*Options, error) {
	opts := Defaults()
	for _, layer := range layers {
		keys := make([]string, 0, len(layer))
		for k := range layer {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if err := opts.Set(k, layer[k]); err != nil {
				return nil, err
			}
		}
	}
	return &opts, nil
}

// Set assigns one raw value. Boolean keys accept true/false/1/0.
func (o *Options) Set(key, value string) error {
	key = NormalizeKey(key)
	switch key {
	case KeyTarget:
		o.Target = value
	case KeyProxy:
		o.Proxy = value
	case KeyDistURL:
		o.DistURL = value
	case KeyDevDir:
		o.DevDir = value
	case KeyTarball:
		o.Tarball = value
	case KeyKeyring:
		o.Keyring = value
	case KeySolution:
		o.Solution = value
	case KeyEnsure:
		return setBool(&o.Ensure, key, value)
	case KeyVerify:
		return setBool(&o.Verify, key, value)
	case KeyDebug:
		return setBool(&o.Debug, key, value)
	case KeyVerbose:
		return setBool(&o.Verbose, key, value)
	case KeyJobs:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return fmt.Errorf("option %s: %q is not a non-negative integer", key, value)
		}
		o.Jobs = n
	default:
		if o.Extra == nil {
			o.Extra = make(map[string]string)
		}
		o.Extra[key] = value
	}
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := ParseBool(value)
	if err != nil {
		return fmt.Errorf("option %s: %w", key, err)
	}
	*dst = b
	return nil
}

// ParseBool accepts true, false, 1 and 0, case-insensitively. An empty
// value is false.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean (use true, false, 1 or 0)", value)
}
