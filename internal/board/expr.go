package board

import (
	"fmt"

	"github.com/dop251/goja"
)

// StatusExpr computes the value of a status register with a JavaScript
// expression over reg, tick and value (the stored register value).
type StatusExpr struct {
	src string
	vm  *goja.Runtime
	fn  goja.Callable
}

// CompileStatusExpr prepares src, e.g. "value + 1" or "tick & 0xffff".
func CompileStatusExpr(src string) (*StatusExpr, error) {
	prog, err := goja.Compile("status", "(function(reg, tick, value) { return ("+src+"); })", true)
	if err != nil {
		return nil, fmt.Errorf("compile status expression: %w", err)
	}
	vm := goja.New()
	v, err := vm.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("load status expression: %w", err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("status expression %q is not callable", src)
	}
	return &StatusExpr{src: src, vm: vm, fn: fn}, nil
}

// Eval returns the expression result truncated to 32 bits. Not safe for
// concurrent use.
func (e *StatusExpr) Eval(reg int, tick int64, value uint32) (uint32, error) {
	res, err := e.fn(goja.Undefined(), e.vm.ToValue(reg), e.vm.ToValue(tick), e.vm.ToValue(value))
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", e.src, err)
	}
	return uint32(res.ToInteger()), nil
}

// String returns the source expression.
func (e *StatusExpr) String() string { return e.src }
