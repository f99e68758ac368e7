//go:build !no_automation

package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

const (
	capabilityFunc    = "is_color_supported"
	capabilityTimeout = 50 * time.Millisecond
)

// LuaCapability answers IsColorSupported by calling the Lua function
// is_color_supported(hue, saturation) defined by a script. Errors, timeouts
// and non-boolean results reject the color.
type LuaCapability struct {
	mu     sync.Mutex
	state  *lua.LState
	fn     *lua.LFunction
	logger *slog.Logger
}

// LoadLuaCapability reads a capability script from path.
func LoadLuaCapability(path string, logger *slog.Logger) (*LuaCapability, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability script: %w", err)
	}
	return NewLuaCapability(string(code), logger)
}

// NewLuaCapability runs code in a sandboxed VM and looks up its predicate.
func NewLuaCapability(code string, logger *slog.Logger) (*LuaCapability, error) {
	L := newSandboxedState()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	L.SetContext(ctx)

	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("load capability script: %s", runError(err))
	}
	L.RemoveContext()

	fn, ok := L.GetGlobal(capabilityFunc).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("capability script does not define %s(hue, saturation)", capabilityFunc)
	}
	return &LuaCapability{
		state:  L,
		fn:     fn,
		logger: logger.With("component", "capability"),
	}, nil
}

// IsColorSupported calls the script predicate.
func (c *LuaCapability) IsColorSupported(hue, saturation uint8) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), capabilityTimeout)
	defer cancel()
	c.state.SetContext(ctx)
	defer c.state.RemoveContext()

	err := c.state.CallByParam(lua.P{Fn: c.fn, NRet: 1, Protect: true}, lua.LNumber(hue), lua.LNumber(saturation))
	if err != nil {
		c.logger.Warn("capability check failed", "hue", hue, "saturation", saturation, "err", err)
		return false
	}
	ret := c.state.Get(-1)
	c.state.Pop(1)

	ok, isBool := ret.(lua.LBool)
	if !isBool {
		c.logger.Warn("capability check returned non-boolean", "hue", hue, "saturation", saturation, "type", ret.Type().String())
		return false
	}
	return bool(ok)
}

// Close releases the Lua state.
func (c *LuaCapability) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		c.state.Close()
		c.state = nil
	}
}
