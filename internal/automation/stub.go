//go:build no_automation

package automation

import (
	"context"
	"errors"
	"log/slog"

	"zigbee-color-light/internal/device"
	"zigbee-color-light/internal/zcl"
)

var (
	// ErrDisabled is returned when the binary is built without automation.
	ErrDisabled = errors.New("automation disabled")
	// ErrInvalidScriptID is never returned without automation.
	ErrInvalidScriptID = errors.New("invalid script id")
	// ErrScriptNotFound is never returned without automation.
	ErrScriptNotFound = errors.New("script not found")
)

// Light is the part of the device the script modules drive.
type Light interface {
	Execute(ctx context.Context, endpoint uint8, cmd device.Command, source string) (zcl.Status, error)
	Endpoint(ctx context.Context, endpoint uint8) (*device.EndpointState, error)
	Endpoints() []uint8
	Events() *device.EventBus
}

// ScriptMeta is the metadata kept in a script's header line.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is one automation script file.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	FilePath string     `json:"-"`
}

// RunResult is the outcome of a one-shot script run.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// Manager is a no-op stub when automation is disabled.
type Manager struct{}

// NewManager returns a nil manager.
func NewManager(_ string, _ *slog.Logger) (*Manager, error) { return nil, nil }

// List returns nil.
func (m *Manager) List() ([]*Script, error) { return nil, nil }

// Get returns ErrDisabled.
func (m *Manager) Get(_ string) (*Script, error) { return nil, ErrDisabled }

// Save returns ErrDisabled.
func (m *Manager) Save(_ *Script) (*Script, error) { return nil, ErrDisabled }

// Delete returns ErrDisabled.
func (m *Manager) Delete(_ string) error { return ErrDisabled }

// Engine is a no-op stub when automation is disabled.
type Engine struct{}

// NewEngine returns a no-op engine.
func NewEngine(_ Light, _ *Manager, _ *slog.Logger) *Engine { return &Engine{} }

// Start is a no-op.
func (e *Engine) Start() {}

// Stop is a no-op.
func (e *Engine) Stop() {}

// Running returns nil.
func (e *Engine) Running() []string { return nil }

// ReloadScript is a no-op.
func (e *Engine) ReloadScript(_ string) error { return nil }

// StopScript is a no-op.
func (e *Engine) StopScript(_ string) {}

// RunScript returns a disabled result.
func (e *Engine) RunScript(_ string) *RunResult {
	return &RunResult{Error: ErrDisabled.Error()}
}

// RunLuaCode returns a disabled result.
func (e *Engine) RunLuaCode(_ string) *RunResult {
	return &RunResult{Error: ErrDisabled.Error()}
}

// LuaCapability is unavailable without automation.
type LuaCapability struct{}

// LoadLuaCapability returns ErrDisabled.
func LoadLuaCapability(_ string, _ *slog.Logger) (*LuaCapability, error) { return nil, ErrDisabled }

// IsColorSupported accepts every color.
func (c *LuaCapability) IsColorSupported(_, _ uint8) bool { return true }

// Close is a no-op.
func (c *LuaCapability) Close() {}
