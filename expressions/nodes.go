package expressions

import "strings"

// node is one operation of a parsed expression.
type node struct {
	kind nodeKind
	// name is the text of a number, a variable name, or the name of the
	// function a call node calls through fn.
	name string
	fn   Func
	// left is the operand of prefix and suffix operations and the lhs of
	// binary ones. right is the rhs, or the argument of a call.
	left  *node
	right *node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota
	nodeNum
	nodeName
	nodeCall
	nodeNeg
	nodeAdd
	nodeSub
	nodeMul
	nodeDiv
	nodePow
	nodeNop
	nodeFact
	nodePct
)

//go:generate go mod edit -require=golang.org/x/tools@v0.1.0
//go:generate go mod download
//go:generate go run golang.org/x/tools/cmd/stringer -type=nodeKind -trimprefix=node
//go:generate go mod tidy

// opSymbols are the symbols of operator nodes, in source and in calculator
// notation.
var opSymbols = [...]struct{ src, calc string }{
	nodeNeg:  {"-", "−"},
	nodeAdd:  {"+", "+"},
	nodeSub:  {"-", "−"},
	nodeMul:  {"*", "×"},
	nodeDiv:  {"/", "÷"},
	nodePow:  {"^", "^"},
	nodeNop:  {"+", "+"},
	nodeFact: {"!", "!"},
	nodePct:  {"%", "%"},
}

// symbol returns the node's operator symbol, or empty if it isn't an
// operator.
func (n *node) symbol(calc bool) string {
	if n.kind < 0 || int(n.kind) >= len(opSymbols) {
		return ""
	}
	if calc {
		return opSymbols[n.kind].calc
	}
	return opSymbols[n.kind].src
}

// op names the operation a node performs, for errors.
func (n *node) op() string {
	switch n.kind {
	case nodeNum, nodeName, nodeCall:
		return n.name
	}
	if s := n.symbol(false); s != "" {
		return s
	}
	return n.kind.String()
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b, false, false)
	return b.String()
}

func brackets(square bool) (string, string) {
	if square {
		return "[", "]"
	}
	return "(", ")"
}

// fmt writes the subtree with every node in brackets, alternating round and
// square by depth. With calc, operators use calculator symbols.
func (n *node) fmt(b *strings.Builder, square, calc bool) {
	l, r := brackets(square)
	b.WriteString(l)
	defer b.WriteString(r)
	sym := n.symbol(calc)
	switch n.kind {
	case nodeNone:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		if n.left != nil {
			n.left.fmt(b, !square, calc)
		}
		b.WriteByte('#')
		if n.right != nil {
			n.right.fmt(b, !square, calc)
		}
		b.WriteByte('$')
	case nodeNum, nodeName:
		b.WriteString(n.name)
	case nodeCall:
		b.WriteString(n.name)
		al, ar := brackets(!square)
		b.WriteString(al)
		if n.right != nil {
			n.right.fmt(b, square, calc)
		}
		b.WriteString(ar)
	case nodeNeg, nodeNop:
		b.WriteString(sym)
		n.left.fmt(b, !square, calc)
	case nodeFact, nodePct:
		n.left.fmt(b, !square, calc)
		b.WriteString(sym)
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodePow:
		n.left.fmt(b, !square, calc)
		b.WriteString(" " + sym + " ")
		n.right.fmt(b, !square, calc)
	default:
		panic("expressions: invalid node kind " + n.kind.String() + " after writing " + b.String())
	}
}
