/*
Package gentree defines the normalized program tree consumed by the
generator compiler.  The node set is closed: a front end lowers whatever
surface syntax it accepts into these variants and nothing else.  Nodes carry
no evaluation logic.
*/
package gentree

import (
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

// Node is one program tree node.  The interface is sealed; the compiler
// rejects anything outside the closed variant set.
type Node interface {
	node()
}

// Literal evaluates to a constant value.
type Literal struct {
	Val lisp.LVal
}

// Quoted evaluates to its value without interpretation.  A quoted symbol is
// data, not a variable reference.
type Quoted struct {
	Val lisp.LVal
}

// Var references a lifted variable by its source name.
type Var struct {
	Name symbol.ID
}

// Seq evaluates nodes in order; the sequence's value is the last node's
// value.  An empty Seq evaluates to nil.
type Seq struct {
	Nodes []Node
}

// If evaluates Cond and then exactly one branch.  A nil Else behaves as an
// empty sequence.
type If struct {
	Cond Node
	Then Node
	Else Node
}

// While evaluates Body repeatedly as long as Test is true.  Its value is nil.
type While struct {
	Test Node
	Body Node
}

// Bind pairs a variable with its initializer inside a Let.
type Bind struct {
	Name symbol.ID
	Init Node
}

// Let introduces scoped local variables.  When Sequential is true each
// initializer sees the bindings established before it (let* order);
// otherwise every initializer is evaluated under the enclosing scope before
// any variable is visible (let order).
type Let struct {
	Sequential bool
	Binds      []Bind
	Body       Node
}

// Set assigns the value expression to an existing variable, or lifts a new
// slot for the name in the current scope when it is unbound.
type Set struct {
	Name  symbol.ID
	Value Node
}

// Call applies the named operator to argument values.  Arguments must not
// suspend; a call containing a yield or delegate is rejected at compile
// time.
type Call struct {
	Fn   symbol.ID
	Args []Node
}

// Yield suspends the generator producing the value expression's result.  Tag
// is optional (zero means untagged) and is forwarded on the yield status.
type Yield struct {
	Value Node
	Tag   symbol.ID
}

// Delegate suspends into a nested generator produced by Source, forwarding
// suspend/resume traffic until the nested generator finishes.  The delegate
// expression's value is the nested generator's final value.
type Delegate struct {
	Source Node
}

// Clause is one handler arm of a Handler node.  Pattern names the condition
// type it catches; the symbol "condition" catches everything.  When HasVar is
// true the caught condition is bound to Var inside Body.
type Clause struct {
	Pattern symbol.ID
	Var     symbol.ID
	HasVar  bool
	Body    Node
}

// Handler protects Body with condition handlers.  A condition raised while
// Body executes, including inside a delegated generator at the delegation
// site, routes to the innermost matching clause.
type Handler struct {
	Body    Node
	Clauses []Clause
}

func (Literal) node()  {}
func (Quoted) node()   {}
func (Var) node()      {}
func (Seq) node()      {}
func (If) node()       {}
func (While) node()    {}
func (Let) node()      {}
func (Set) node()      {}
func (Call) node()     {}
func (Yield) node()    {}
func (Delegate) node() {}
func (Handler) node()  {}

// Kind returns a short name for the node's variant, used in compiler
// diagnostics.
func Kind(n Node) string {
	switch n.(type) {
	case Literal:
		return "literal"
	case Quoted:
		return "quoted"
	case Var:
		return "var"
	case Seq:
		return "seq"
	case If:
		return "if"
	case While:
		return "while"
	case Let:
		return "let"
	case Set:
		return "set"
	case Call:
		return "call"
	case Yield:
		return "yield"
	case Delegate:
		return "delegate"
	case Handler:
		return "handler"
	case nil:
		return "nil"
	default:
		return "unknown"
	}
}

// Suspends reports whether the subtree rooted at n contains a yield or
// delegate.  The compiler uses it to reject suspending expressions in
// single-step positions (call arguments, conditions, yield values).
func Suspends(n Node) bool {
	switch n := n.(type) {
	case Yield, Delegate:
		return true
	case Seq:
		for _, sub := range n.Nodes {
			if Suspends(sub) {
				return true
			}
		}
	case If:
		return Suspends(n.Cond) || Suspends(n.Then) || (n.Else != nil && Suspends(n.Else))
	case While:
		return Suspends(n.Test) || Suspends(n.Body)
	case Let:
		for _, b := range n.Binds {
			if Suspends(b.Init) {
				return true
			}
		}
		return Suspends(n.Body)
	case Set:
		return Suspends(n.Value)
	case Call:
		for _, a := range n.Args {
			if Suspends(a) {
				return true
			}
		}
	case Handler:
		if Suspends(n.Body) {
			return true
		}
		for _, c := range n.Clauses {
			if Suspends(c.Body) {
				return true
			}
		}
	}
	return false
}
