package derive

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getgrove/grove/pkg/path"
	"github.com/getgrove/grove/pkg/track"
)

// RegisterExpr adds a derived entry whose value is an expr-lang
// expression evaluated over a state subtree. at addresses the object
// the expression's variables are drawn from ("" or "$" for the root);
// an expression over `$.ui` sees `ui`'s fields as top-level variables.
//
// The program is compiled once at registration. Evaluation reads the
// subtree through the tracked accessors, so the entry's dependency on
// it is collected like any hand-written compute.
func (c *Cache) RegisterExpr(name, source, at string) (*Entry, error) {
	var p path.Path
	if at != "" {
		parsed, err := path.Parse(at)
		if err != nil {
			return nil, fmt.Errorf("derived value %q: %w", name, err)
		}
		p = parsed
	}

	program, err := expr.Compile(source, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("derived value %q: compile %q: %w", name, source, err)
	}

	return c.Register(name, exprCompute(name, program, p))
}

func exprCompute(name string, program *vm.Program, at path.Path) Func {
	return func(root *track.Object) (any, error) {
		env, err := exprEnv(root, at)
		if err != nil {
			return nil, err
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return nil, fmt.Errorf("eval: %w", err)
		}
		return result, nil
	}
}

// exprEnv resolves the subtree the expression runs over and converts it
// to the plain map expr evaluates against.
func exprEnv(root *track.Object, at path.Path) (map[string]any, error) {
	var cur any = root
	for i := 0; i < at.Len(); i++ {
		seg := at.Segment(i)
		if key, ok := seg.Key(); ok {
			switch c := cur.(type) {
			case *track.Object:
				cur = c.Get(key)
			case *track.Model:
				cur = c.Get(key)
			default:
				return nil, fmt.Errorf("%s is not an object", at)
			}
			continue
		}
		idx, _ := seg.Index()
		l, ok := cur.(*track.List)
		if !ok {
			return nil, fmt.Errorf("%s is not a list", at)
		}
		cur = l.At(idx)
	}

	switch c := cur.(type) {
	case *track.Object:
		return c.Plain(), nil
	case *track.Model:
		return c.Plain(), nil
	case nil:
		return nil, fmt.Errorf("nothing at %s", at)
	default:
		return nil, fmt.Errorf("%s is not an object", at)
	}
}
