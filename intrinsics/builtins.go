package intrinsics

import (
	"context"
	"fmt"

	"github.com/podhmo/go-analyzing/object"
)

// UnknownType is the type of values whose content cannot be computed,
// e.g. arithmetic over non-direct operands.
var UnknownType = object.TypeOf("<unknown>")

type operator struct {
	op string
}

var operators = map[string]*operator{}

func init() {
	for _, op := range []string{"+", "-", "*", "/", "%", "==", "!=", "<", "<=", ">", ">=", "&&", "||", "!", "neg"} {
		operators[op] = &operator{op: op}
	}
}

// Operator returns the direct method implementing a Go operator.
// Unary minus is spelled "neg". It returns nil for unknown operators.
func Operator(op string) DirectMethod {
	if o, ok := operators[op]; ok {
		return o
	}
	return nil
}

func (o *operator) Name() string { return "op" + o.op }

func (o *operator) Invoke(ctx context.Context, dc Context) error {
	args := dc.Arguments()
	unary := o.op == "!" || o.op == "neg"
	if unary && len(args) != 1 || !unary && len(args) != 2 {
		return fmt.Errorf("operator %s: unexpected argument count %d", o.op, len(args))
	}
	vals := make([]any, len(args))
	for i, a := range args {
		v, ok := a.DirectValue()
		if !ok {
			dc.Return(dc.CreateInstance(UnknownType))
			return nil
		}
		vals[i] = v
	}
	var result any
	var err error
	if unary {
		result, err = evalUnary(o.op, vals[0])
	} else {
		result, err = evalBinary(o.op, vals[0], vals[1])
	}
	if err != nil {
		return err
	}
	dc.Return(dc.CreateDirect(result))
	return nil
}

func evalUnary(op string, v any) (any, error) {
	switch op {
	case "!":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("operator !: %T is not bool", v)
		}
		return !b, nil
	default:
		switch x := v.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		}
		return nil, fmt.Errorf("operator -: unsupported operand %T", v)
	}
}

func evalBinary(op string, a, b any) (any, error) {
	switch op {
	case "&&", "||":
		x, ok1 := a.(bool)
		y, ok2 := b.(bool)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("operator %s: operands must be bool, got %T and %T", op, a, b)
		}
		if op == "&&" {
			return x && y, nil
		}
		return x || y, nil
	case "==":
		return a == b, nil
	case "!=":
		return a != b, nil
	}

	switch x := a.(type) {
	case int64:
		y, ok := b.(int64)
		if !ok {
			break
		}
		switch op {
		case "+":
			return x + y, nil
		case "-":
			return x - y, nil
		case "*":
			return x * y, nil
		case "/", "%":
			if y == 0 {
				return nil, fmt.Errorf("operator %s: division by zero", op)
			}
			if op == "/" {
				return x / y, nil
			}
			return x % y, nil
		case "<":
			return x < y, nil
		case "<=":
			return x <= y, nil
		case ">":
			return x > y, nil
		case ">=":
			return x >= y, nil
		}
	case float64:
		y, ok := b.(float64)
		if !ok {
			break
		}
		switch op {
		case "+":
			return x + y, nil
		case "-":
			return x - y, nil
		case "*":
			return x * y, nil
		case "/":
			return x / y, nil
		case "<":
			return x < y, nil
		case "<=":
			return x <= y, nil
		case ">":
			return x > y, nil
		case ">=":
			return x >= y, nil
		}
	case string:
		y, ok := b.(string)
		if !ok {
			break
		}
		switch op {
		case "+":
			return x + y, nil
		case "<":
			return x < y, nil
		case "<=":
			return x <= y, nil
		case ">":
			return x > y, nil
		case ">=":
			return x >= y, nil
		}
	}
	return nil, fmt.Errorf("operator %s: unsupported operands %T and %T", op, a, b)
}

// FieldGetter reads a named field of its single argument.
type FieldGetter struct {
	Field string
}

func (g *FieldGetter) Name() string { return "get." + g.Field }

func (g *FieldGetter) Invoke(ctx context.Context, dc Context) error {
	args := dc.Arguments()
	if len(args) != 1 {
		return fmt.Errorf("field getter %s: expected 1 argument, got %d", g.Field, len(args))
	}
	if v, ok := args[0].Field(g.Field); ok {
		dc.Return(v)
		return nil
	}
	dc.Return(dc.Nothing())
	return nil
}

// FieldSetter stores its second argument into a named field of the first.
type FieldSetter struct {
	Field string
}

func (s *FieldSetter) Name() string { return "set." + s.Field }

func (s *FieldSetter) Invoke(ctx context.Context, dc Context) error {
	args := dc.Arguments()
	if len(args) != 2 {
		return fmt.Errorf("field setter %s: expected 2 arguments, got %d", s.Field, len(args))
	}
	if args[0].IsNothing() {
		return fmt.Errorf("field setter %s: receiver is nothing", s.Field)
	}
	args[0].SetField(s.Field, args[1])
	dc.Return(dc.Nothing())
	return nil
}

// Builtins returns a registry layer with the language-neutral builtins.
func Builtins() *Registry {
	r := New()
	r.RegisterFunc("builtin.println", func(ctx context.Context, dc Context) error {
		dc.Return(dc.Nothing())
		return nil
	})
	r.RegisterFunc("builtin.len", func(ctx context.Context, dc Context) error {
		args := dc.Arguments()
		if len(args) != 1 {
			return fmt.Errorf("len: expected 1 argument, got %d", len(args))
		}
		if s, ok := args[0].DirectValue(); ok {
			if str, ok := s.(string); ok {
				dc.Return(dc.CreateDirect(int64(len(str))))
				return nil
			}
		}
		dc.Return(dc.CreateInstance(object.TypeOf("int")))
		return nil
	})
	return r
}
