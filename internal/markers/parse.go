package markers

import (
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// A ParseError is returned from [Parse] when the marker text is malformed or uses an unsupported
// construct.
type ParseError struct {
	Marker string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid marker %q: %v", e.Marker, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses PEP 508 marker text.  The empty string parses to the always-true marker.
//
// The marker grammar is a subset of the expr language, so the text is parsed with expr's parser and
// the resulting syntax tree is then checked for constructs that are not markers (arithmetic,
// function calls, member access, non-string literals, and so on).
func Parse(text string) (Tree, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return True(), nil
	}
	if strings.Contains(text, "~=") || strings.Contains(text, "===") {
		return Tree{}, &ParseError{Marker: text, Err: fmt.Errorf("the ~= and === operators are not supported in markers")}
	}
	// Marker strings have no escape sequences, but expr would accept (and consume) them.
	if strings.Contains(text, `\`) {
		return Tree{}, &ParseError{Marker: text, Err: fmt.Errorf("backslashes are not allowed in markers")}
	}
	tree, err := parser.Parse(text)
	if err != nil {
		return Tree{}, &ParseError{Marker: text, Err: err}
	}
	t, err := fromAST(tree.Node)
	if err != nil {
		return Tree{}, &ParseError{Marker: text, Err: err}
	}
	return t, nil
}

func fromAST(n ast.Node) (Tree, error) {
	switch n := n.(type) {
	case *ast.BoolNode:
		if n.Value {
			return True(), nil
		}
		return False(), nil
	case *ast.UnaryNode:
		if n.Operator != "not" && n.Operator != "!" {
			return Tree{}, fmt.Errorf("unsupported unary operator %q", n.Operator)
		}
		t, err := fromAST(n.Node)
		if err != nil {
			return Tree{}, err
		}
		return Not(t), nil
	case *ast.BinaryNode:
		switch n.Operator {
		case "and", "&&", "or", "||":
			l, err := fromAST(n.Left)
			if err != nil {
				return Tree{}, err
			}
			r, err := fromAST(n.Right)
			if err != nil {
				return Tree{}, err
			}
			if n.Operator == "and" || n.Operator == "&&" {
				return And(l, r), nil
			}
			return Or(l, r), nil
		case "==", "!=", "<", "<=", ">", ">=", "in":
			a, err := atomFromAST(n.Operator, n.Left, n.Right)
			if err != nil {
				return Tree{}, err
			}
			return FromAtom(a), nil
		case "not in":
			a, err := atomFromAST("in", n.Left, n.Right)
			if err != nil {
				return Tree{}, err
			}
			return FromAtom(a.negate()), nil
		default:
			return Tree{}, fmt.Errorf("unsupported operator %q", n.Operator)
		}
	default:
		return Tree{}, fmt.Errorf("unsupported expression %q", n.String())
	}
}

var flipped = map[string]string{
	"==": "==",
	"!=": "!=",
	"<":  ">",
	"<=": ">=",
	">":  "<",
	">=": "<=",
}

func atomFromAST(op string, left, right ast.Node) (Atom, error) {
	lv, lIsVar, err := operand(left)
	if err != nil {
		return Atom{}, err
	}
	rv, rIsVar, err := operand(right)
	if err != nil {
		return Atom{}, err
	}
	var a Atom
	switch {
	case lIsVar && !rIsVar:
		a = Atom{Var: lv, Op: op, Value: rv}
	case !lIsVar && rIsVar:
		a = Atom{Var: rv, Op: op, Value: lv}
		if op == "in" {
			a.Reversed = true
		} else {
			a.Op = flipped[op]
		}
	case lIsVar && rIsVar:
		return Atom{}, fmt.Errorf("comparison between two variables (%s, %s) is not supported", lv, rv)
	default:
		return Atom{}, fmt.Errorf("comparison between two literals (%q, %q) is not supported", lv, rv)
	}
	if IsVersionVariable(a.Var) && !a.isMembership() && toSemver(a.Value) == "" {
		return Atom{}, fmt.Errorf("%q is not a valid version for %s", a.Value, a.Var)
	}
	return a, nil
}

// operand returns the variable name or string literal value of a comparison operand.
func operand(n ast.Node) (string, bool, error) {
	switch n := n.(type) {
	case *ast.IdentifierNode:
		if !slices.Contains(Variables, n.Value) {
			return "", false, fmt.Errorf("unknown marker variable %q", n.Value)
		}
		return n.Value, true, nil
	case *ast.StringNode:
		// A literal must be quotable with one of ' or " to render as marker text.
		if strings.Contains(n.Value, "'") && strings.Contains(n.Value, `"`) {
			return "", false, fmt.Errorf("string %q contains both quote characters", n.Value)
		}
		return n.Value, false, nil
	default:
		return "", false, fmt.Errorf("unsupported operand %q; expected a marker variable or a quoted string", n.String())
	}
}
