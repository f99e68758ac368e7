//go:build !no_automation

package automation

import (
	"context"
	"time"

	"zigbee-color-light/internal/device"

	lua "github.com/yuin/gopher-lua"
)

const (
	maxHandlersPerScript = 100
	scriptCommandTimeout = 5 * time.Second
	scriptSource         = "script"
)

// registerLightModule installs the `light` global table.
func registerLightModule(L *lua.LState, vm *scriptVM, e *Engine) {
	fns := map[string]lua.LGFunction{
		"on": func(L *lua.LState) int { return lightOn(L, vm) },

		"move_to_hue": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{
				Command:        device.CommandMoveToHue,
				Hue:            checkByte(L, 2),
				TransitionTime: optTransition(L, 3),
				Direction:      L.OptString(4, ""),
			})
		},
		"move_hue": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{
				Command: device.CommandMoveHue,
				Mode:    L.CheckString(2),
				Rate:    checkByte(L, 3),
			})
		},
		"step_hue": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{
				Command:        device.CommandStepHue,
				Mode:           L.CheckString(2),
				StepSize:       checkByte(L, 3),
				TransitionTime: optTransition(L, 4),
			})
		},
		"move_to_saturation": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{
				Command:        device.CommandMoveToSaturation,
				Saturation:     checkByte(L, 2),
				TransitionTime: optTransition(L, 3),
			})
		},
		"move_saturation": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{
				Command: device.CommandMoveSaturation,
				Mode:    L.CheckString(2),
				Rate:    checkByte(L, 3),
			})
		},
		"step_saturation": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{
				Command:        device.CommandStepSaturation,
				Mode:           L.CheckString(2),
				StepSize:       checkByte(L, 3),
				TransitionTime: optTransition(L, 4),
			})
		},
		"set_color": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{
				Command:        device.CommandMoveToHueAndSaturation,
				Hue:            checkByte(L, 2),
				Saturation:     checkByte(L, 3),
				TransitionTime: optTransition(L, 4),
			})
		},
		"stop": func(L *lua.LState) int {
			return e.luaExecute(L, device.Command{Command: device.CommandStop})
		},

		"get":       func(L *lua.LState) int { return lightGet(L, e) },
		"state":     func(L *lua.LState) int { return lightState(L, e) },
		"endpoints": func(L *lua.LState) int { return lightEndpoints(L, e) },
		"after":     func(L *lua.LState) int { return lightAfter(L, vm, e) },
		"log":       func(L *lua.LState) int { return lightLog(L, vm, e) },
	}
	L.SetGlobal("light", L.SetFuncs(L.NewTable(), fns))
}

// light.on(event_type, filter, fn). filter may hold endpoint and property.
func lightOn(L *lua.LState, vm *scriptVM) int {
	h := luaEventHandler{eventType: L.CheckString(1)}
	filter := L.CheckTable(2)
	h.fn = L.CheckFunction(3)

	if v, ok := filter.RawGetString("endpoint").(lua.LNumber); ok {
		if v < 1 || v > 240 {
			L.ArgError(2, "endpoint must be 1-240")
			return 0
		}
		h.endpoint = uint8(v)
	}
	if v := filter.RawGetString("property"); v != lua.LNil {
		h.property = v.String()
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	return 0
}

// luaExecute runs cmd on the endpoint in argument 1. It returns the ZCL status
// name, or nil and an error message.
func (e *Engine) luaExecute(L *lua.LState, cmd device.Command) int {
	ep := checkEndpoint(L, 1)
	ctx, cancel := context.WithTimeout(context.Background(), scriptCommandTimeout)
	defer cancel()

	status, err := e.light.Execute(ctx, ep, cmd, scriptSource)
	if err != nil {
		e.logger.Warn("script command", "endpoint", ep, "command", cmd.Command, "err", err)
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(status.String()))
	return 1
}

// light.get(endpoint, property)
func lightGet(L *lua.LState, e *Engine) int {
	ep := checkEndpoint(L, 1)
	prop := L.CheckString(2)

	st, err := e.endpointState(ep)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, st.Properties[prop]))
	return 1
}

// light.state(endpoint) returns the endpoint properties plus phase and, while
// a transition runs, its kind.
func lightState(L *lua.LState, e *Engine) int {
	ep := checkEndpoint(L, 1)
	st, err := e.endpointState(ep)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	t := L.NewTable()
	for k, v := range st.Properties {
		t.RawSetString(k, goToLua(L, v))
	}
	t.RawSetString("endpoint", lua.LNumber(st.ID))
	t.RawSetString("phase", lua.LString(st.Phase))
	if st.Transition != nil {
		t.RawSetString("transition", lua.LString(st.Transition.Kind.String()))
	}
	L.Push(t)
	return 1
}

// light.endpoints() returns the endpoint IDs as a list.
func lightEndpoints(L *lua.LState, e *Engine) int {
	t := L.NewTable()
	for i, ep := range e.light.Endpoints() {
		t.RawSetInt(i+1, lua.LNumber(ep))
	}
	L.Push(t)
	return 1
}

// light.after(seconds, fn) runs fn on the script VM after a delay.
func lightAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)
	if seconds < 0 {
		L.ArgError(1, "delay must not be negative")
		return 0
	}

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}
		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: script queue full")
		}
	}()
	return 0
}

// light.log(msg)
func lightLog(L *lua.LState, vm *scriptVM, e *Engine) int {
	msg := L.CheckString(1)
	if vm.logf != nil {
		vm.logf(msg)
	}
	e.logger.Info("script log", "msg", msg)
	return 0
}

func (e *Engine) endpointState(ep uint8) (*device.EndpointState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), scriptCommandTimeout)
	defer cancel()
	return e.light.Endpoint(ctx, ep)
}

func checkEndpoint(L *lua.LState, n int) uint8 {
	v := L.CheckInt(n)
	if v < 1 || v > 240 {
		L.ArgError(n, "endpoint must be 1-240")
	}
	return uint8(v)
}

func checkByte(L *lua.LState, n int) uint8 {
	v := L.CheckInt(n)
	if v < 0 || v > 0xFF {
		L.ArgError(n, "value must be 0-255")
	}
	return uint8(v)
}

func optTransition(L *lua.LState, n int) uint16 {
	v := L.OptInt(n, 0)
	if v < 0 || v > 0xFFFF {
		L.ArgError(n, "transition time must be 0-65535")
	}
	return uint16(v)
}
