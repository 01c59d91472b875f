package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/addonkit/internal/platform"
)

const (
	// MaxConfigSize bounds the config file size.
	MaxConfigSize = 1 << 20
	// DefaultParseTimeout applies when the context has no deadline.
	DefaultParseTimeout = 5 * time.Second

	luaGlobalAddonkit = "addonkit"
)

// Parser evaluates Lua config files.
type Parser struct {
	platform *platform.Info
	log      zerolog.Logger
}

// NewParser creates a parser. info may be nil, in which case no platform
// table is injected.
func NewParser(info *platform.Info, log zerolog.Logger) *Parser {
	return &Parser{platform: info, log: log}
}

// DefaultPath returns $XDG_CONFIG_HOME/addonkit/config.lua, falling back to
// the OS user config directory.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve config directory: %w", err)
		}
	}
	return filepath.Join(dir, "addonkit", "config.lua"), nil
}

// Load reads the config at path. With an empty path the default location is
// used, and a missing default file yields empty values rather than an error.
func (p *Parser) Load(ctx context.Context, path string) (Values, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	values, err := p.ParseFile(ctx, path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			p.log.Debug().Str("path", path).Msg("no config file")
			return Values{}, nil
		}
		return nil, err
	}
	p.log.Debug().Str("path", path).Int("keys", len(values)).Msg("loaded config file")
	return values, nil
}

// ParseFile evaluates the config file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (Values, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s is %d bytes, maximum is %d", path, info.Size(), MaxConfigSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return p.ParseString(ctx, string(data))
}

// ParseString evaluates Lua config code.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (Values, error) {
	if len(luaCode) > MaxConfigSize {
		return nil, &ParseError{
			Message: "config too large",
			Detail:  fmt.Sprintf("%d bytes, maximum is %d", len(luaCode), MaxConfigSize),
		}
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.platform != nil {
		if err := platform.InjectPlatformTable(L, p.platform); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ParseError{Message: "config evaluation timed out", Detail: ctxErr.Error()}
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractValues(L)
}

// ParseError is a config error with a short message for users and the raw
// Lua error as detail.
type ParseError struct {
	Message string
	Detail  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractValues reads the global addonkit table.
func extractValues(L *lua.LState) (Values, error) {
	global := L.GetGlobal(luaGlobalAddonkit)
	table, ok := global.(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'addonkit' table",
			Detail:  fmt.Sprintf("expected table, got %s", global.Type()),
		}
	}

	values := Values{}
	var firstErr error
	table.ForEach(func(k, v lua.LValue) {
		if firstErr != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok {
			firstErr = &ParseError{
				Message: "invalid 'addonkit' table",
				Detail:  fmt.Sprintf("option keys must be strings, got %s", k.Type()),
			}
			return
		}

		key := NormalizeKey(string(name))
		switch val := v.(type) {
		case lua.LString:
			values[key] = string(val)
		case lua.LBool:
			values[key] = strconv.FormatBool(bool(val))
		case lua.LNumber:
			values[key] = strconv.FormatFloat(float64(val), 'f', -1, 64)
		default:
			firstErr = &ParseError{
				Message: "invalid option " + key,
				Detail:  fmt.Sprintf("expected string, boolean or number, got %s", v.Type()),
			}
		}
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return values, nil
}

// FormatError formats err for display. Unless verbose, the Lua stack
// traceback is dropped.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	if verbose {
		return parseErr.Error()
	}
	detail := parseErr.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", parseErr.Message, detail)
}
