// Package config resolves the options every addonkit command runs with.
//
// Options come from four layers, lowest precedence first:
//
//  1. built-in defaults
//  2. the Lua config file ($XDG_CONFIG_HOME/addonkit/config.lua)
//  3. npm_config_* environment variables
//  4. command-line flags
//
// Each layer is reduced to a Values map of normalized keys ("dist_url",
// "jobs", ...) and the layers are folded into an Options struct by Resolve.
//
// # Lua config
//
// The config file is evaluated in a sandboxed gopher-lua VM with the os, io
// and debug libraries removed and module loading disabled. A read-only
// platform table is injected so configs can branch per OS:
//
//	addonkit = {
//	  target   = "0.8",
//	  jobs     = 4,
//	  verify   = true,
//	  proxy    = platform.is_windows and "http://proxy.corp:3128" or nil,
//	}
//
// Evaluation is bounded: files over MaxConfigSize are rejected and
// execution stops after DefaultParseTimeout unless the caller's context
// carries an earlier deadline.
//
// # Environment
//
// Every npm_config_<key> variable with a non-empty key becomes an option,
// except npm_config_loglevel. Unknown keys are kept in Options.Extra.
//
// # Proxy
//
// The download proxy is resolved once: an explicit value wins, then
// http_proxy, then HTTP_PROXY.
package config
