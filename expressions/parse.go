package expressions

import (
	"io"
	"strings"
)

// Expr = num | name | Call | Neg | Plus | Add | Sub | Mul | Div | Pow | Fact | Pct | '(' Expr ')' | '[' Expr ']' | '{' Expr '}'
// Call = funcname | funcname Expr | funcname '(' [Expr] ')'
// Neg = ('-' | '−') Expr
// Plus = '+' Expr
// Add = Expr '+' Expr
// Sub = Expr ('-' | '−') Expr
// Mul = Expr '*' Expr | Expr '×' Expr
// Div = Expr '/' Expr | Expr '÷' Expr
// Pow = Expr '^' Expr
// Fact = Expr '!'
// Pct = Expr '%'

// Expr is a parsed expression that can be evaluated with a context.
type Expr struct {
	// n is the root node of the expression.
	n *node
	// names is the list of variable names used in the expression.
	names []string
}

// Parse parses an expression so it can be evaluated with a context. The given
// options are applied in order.
func Parse(src io.RuneScanner, opts ...ParseOption) (*Expr, error) {
	return parse(lexText(src), opts)
}

// ParseString is a shortcut to parse a string expression.
func ParseString(src string, opts ...ParseOption) (*Expr, error) {
	return Parse(strings.NewReader(src), opts...)
}

func parse(scan scanner, opts []ParseOption) (*Expr, error) {
	p := parsectx{
		names: make(map[string]bool),
	}
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.funcs == nil {
		p.funcs = globalfuncs
	} else if !p.nodefaults {
		// Only set default functions that aren't already set.
		for k, v := range globalfuncs {
			if _, ok := p.funcs[k]; !ok {
				p.funcs[k] = v
			}
		}
	}
	n, err := parseterm(scan, &p, exprprec)
	if err != nil {
		return nil, err
	}
	if tok := scan.must(); tok.kind != tokenEOF {
		return nil, itShouldNotHaveEndedThisWay(tok, "")
	}
	ex := Expr{
		n:     n,
		names: make([]string, 0, len(p.names)),
	}
	for k := range p.names {
		ex.names = append(ex.names, k)
	}
	sortstrs(ex.names)
	return &ex, nil
}

// sortstrs sorts a string slice without using package sort because that has
// reflection and allocation problems.
func sortstrs(names []string) {
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j] < names[j-1]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

// parseterm parses a single term. If there is no error, then parseterm pushes
// the last token it scans, including EOF. If the input is an empty
// subexpression, the result is nil with no error; callers must create an error
// in contexts where empty subexpressions are illegal.
func parseterm(scan scanner, p *parsectx, until operator) (*node, error) {
	n, err := parselhs(scan, p, until)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	return parserest(scan, p, n, until)
}

// parserest parses the operators and terms following an already parsed lhs.
func parserest(scan scanner, p *parsectx, n *node, until operator) (*node, error) {
	for {
		if p.resv != nil {
			// A niladic function was followed by a parenthesized term. So,
			// the parsing here is as if we encountered an open bracket, except
			// that the contents are already parsed and valid.
			if !termprec.moreBinding(until) {
				return n, nil
			}
			r := p.resv
			p.resv = nil
			rhs, err := parserest(scan, p, r, termprec)
			if err != nil {
				return nil, err
			}
			n = &node{kind: nodeMul, left: n, right: rhs}
			continue
		}
		tok, err := scan.next()
		if err != nil {
			return nil, err
		}
		switch tok.kind {
		case tokenNum, tokenIdent:
			// (parsed) x -> (parsed) * (x)
			// (parsed) x^(expr) -> (parsed) * (x^(expr))
			// a^(parsed) x -> (a^(parsed)) * (x)
			scan.push(tok)
			prec := termprec
			if !prec.moreBinding(until) {
				return n, nil
			}
			rhs, err := parseterm(scan, p, prec)
			if err != nil {
				return nil, err
			}
			n = &node{kind: nodeMul, left: n, right: rhs}
		case tokenOp:
			if op := postop(tok.text); op != nodeNone {
				// Suffix operators bind to whatever precedes them: 2^3! is
				// 2^(3!), and -3! is -(3!).
				n = &node{kind: op, left: n}
				continue
			}
			prec := binop(tok.text)
			if prec.op == nodeNone {
				return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: false}
			}
			if !prec.moreBinding(until) {
				scan.push(tok)
				return n, nil
			}
			rhs, err := parseterm(scan, p, prec)
			if err != nil {
				return nil, err
			}
			if rhs == nil {
				// The operand ended at a close bracket.
				end := scan.must()
				scan.push(end)
				return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			n = &node{kind: prec.op, left: n, right: rhs}
		case tokenOpen:
			// Since parselhs parses functions aggressively, this is a
			// multiplication by a parenthesized term: 2 (expr) -> (2) * (expr).
			prec := termprec
			if !prec.moreBinding(until) {
				scan.push(tok)
				return n, nil
			}
			rhs, err := parseterm(scan, p, exprprec)
			if err != nil {
				return nil, err
			}
			end := scan.must()
			if !closes(tok, end) {
				return nil, itShouldNotHaveEndedThisWay(end, tok.text)
			}
			if rhs == nil {
				return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			n = &node{kind: nodeMul, left: n, right: rhs}
		case tokenClose, tokenEOF:
			// End of expression.
			scan.push(tok)
			return n, nil
		default:
			panic("expressions: unknown token: " + tok.String())
		}
	}
}

// parselhs parses the first component of a term. I.e., operators are unary
// and any encountered token must be valid as the start of a subexpression.
func parselhs(scan scanner, p *parsectx, until operator) (*node, error) {
	tok, err := scan.next()
	if err != nil {
		return nil, err
	}
	var n *node
	switch tok.kind {
	case tokenNum:
		n = &node{kind: nodeNum, name: tok.text}
	case tokenIdent:
		fn := p.funcs[tok.text]
		if fn == nil {
			p.names[tok.text] = true
			n = &node{kind: nodeName, name: tok.text}
		} else {
			rhs, exp, err := parsecall(scan, p, until, fn, tok.text)
			if err != nil {
				return nil, err
			}
			// If fn is niladic and the call is like fn(a), then the result
			// from parsecall is nil, nil, and p.resv is non-nil.
			n = &node{kind: nodeCall, name: tok.text, fn: fn, right: rhs}
			if exp != nil {
				exp.left = n
				n = exp
			}
		}
	case tokenOp:
		// unary operator
		prec := unop(tok.text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: true}
		}
		if !prec.moreBinding(until) {
			// x^-y -> x^(-y)
			// Just use the new operator's precedence to simplify.
			prec.prec, prec.right = until.prec, until.right
		}
		rhs, err := parseterm(scan, p, prec)
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			end := scan.must()
			scan.push(end)
			return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
		}
		n = &node{kind: prec.op, left: rhs}
	case tokenOpen:
		rhs, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, err
		}
		end := scan.must()
		if !closes(tok, end) {
			return nil, itShouldNotHaveEndedThisWay(end, tok.text)
		}
		if rhs == nil {
			return nil, &EmptyExpressionError{Col: end.pos, End: end.text}
		}
		n = rhs
	case tokenClose:
		// This might be part of niladic func(), so just let the caller decide
		// what to do.
		scan.push(tok)
		return nil, nil
	case tokenEOF:
		return nil, &EmptyExpressionError{Col: tok.pos, End: ""}
	default:
		panic("expressions: unknown token: " + tok.String())
	}
	return n, nil
}

// parsecall parses the argument to a call of a given Func. The second result,
// if non-nil, is a node that the function call is lhs to.
func parsecall(scan scanner, p *parsectx, until operator, fn Func, name string) (*node, *node, error) {
	tok, err := scan.next()
	if err != nil {
		return nil, nil, err
	}
	switch tok.kind {
	case tokenOp:
		// Check for e.g. ^2 in cos^2 x. Must be an exponentiation or higher.
		// Note that the fact that exponentiation is important here:
		// func^x^y(z) parses as [func(z)]^(x^y).
		if prec := binop(tok.text); prec.moreBinding(powprec) {
			up, err := parseterm(scan, p, powprec)
			if err != nil {
				return nil, nil, err
			}
			if up == nil {
				end := scan.must()
				return nil, nil, &EmptyExpressionError{Col: end.pos, End: end.text}
			}
			exp := &node{kind: nodePow, right: up}
			if p.resv != nil {
				// The exponent ended with a niladic call like zero(x), so x
				// is either our argument or a term following us.
				switch {
				case fn.CanCall(1):
					arg := p.resv
					p.resv = nil
					return arg, exp, nil
				case fn.CanCall(0):
					return nil, exp, nil
				default:
					return nil, nil, &CallError{Col: tok.pos, Func: name}
				}
			}
			arg, ee, err := parsecall(scan, p, until, fn, name)
			if err != nil {
				return nil, nil, err
			}
			if ee != nil {
				// The precedence we parsed is right-associative and higher
				// than any other. With the current rules, there should never
				// be an additional exponent here.
				panic("expressions: parsed second call exponent: " + ee.String())
			}
			// The caller fills in exp.left.
			return arg, exp, nil
		}
		if postop(tok.text) != nodeNone {
			// fn! applies to the value of fn, if it has one.
			if !fn.CanCall(0) {
				return nil, nil, &CallError{Col: tok.pos, Func: name}
			}
			scan.push(tok)
			return nil, nil, nil
		}
		// Other than exponentiations, finding an operator is the same as
		// finding a number or identifier.
		fallthrough
	case tokenNum, tokenIdent:
		switch {
		case fn.CanCall(1):
			// Single argument. exp x -> exp(x)
			scan.push(tok)
			if termprec.moreBinding(until) {
				until = termprec
			}
			rhs, err := parseterm(scan, p, until)
			if err != nil {
				return nil, nil, err
			}
			return rhs, nil, nil
		case fn.CanCall(0):
			// No argument. pi x -> (pi) * (x)
			scan.push(tok)
		default:
			return nil, nil, &CallError{Col: tok.pos, Func: name, Len: 1}
		}
	case tokenOpen:
		rhs, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, nil, err
		}
		end := scan.must()
		if !closes(tok, end) {
			return nil, nil, itShouldNotHaveEndedThisWay(end, tok.text)
		}
		switch {
		case rhs == nil && fn.CanCall(0):
			// fn()
		case rhs == nil:
			return nil, nil, &CallError{Col: end.pos, Func: name}
		case fn.CanCall(1):
			return rhs, nil, nil
		case fn.CanCall(0):
			// fn(a) -> fn()*a. Reserve the argument so that the enclosing
			// term can multiply by it.
			p.resv = rhs
		default:
			return nil, nil, &CallError{Col: tok.pos, Func: name, Len: 1}
		}
	case tokenClose, tokenEOF:
		if !fn.CanCall(0) {
			return nil, nil, &CallError{Col: tok.pos, Func: name}
		}
		scan.push(tok)
	default:
		panic("expressions: unknown token: " + tok.String())
	}
	return nil, nil, nil
}

// closes reports whether end is the bracket that closes open.
func closes(open, end lexToken) bool {
	return end.kind == tokenClose && end.text == closers[open.text]
}

// itShouldNotHaveEndedThisWay returns an error appropriate for an unexpected
// token at the end of a subexpression. open is the bracket that the
// subexpression began with, or empty if none.
func itShouldNotHaveEndedThisWay(tok lexToken, open string) error {
	switch tok.kind {
	case tokenEOF:
		// Unexpected EOF implies an open bracket that was not closed.
		return &BracketError{Col: tok.pos, Left: open, Right: ""}
	case tokenClose:
		// A bracket could be the wrong bracket for the opening brace or any
		// bracket at the end of an input.
		return &BracketError{Col: tok.pos, Left: open, Right: tok.text}
	default:
		panic("expressions: it really should not have ended this way: " + tok.String())
	}
}

// Vars returns the variable names used when evaluating the expression.
func (e *Expr) Vars() []string {
	return append(([]string)(nil), e.names...)
}

// String creates a string representation of the parsed expression, with
// alternating round and square brackets grouping each term.
func (e *Expr) String() string {
	var b strings.Builder
	e.n.fmt(&b, false, true)
	return b.String()
}

type operator struct {
	// prec is the precedence value. Lower is more binding.
	prec int8
	// right indicates right-associativity.
	right bool
	// op is the node kind to use when this operator is selected.
	op nodeKind
}

func (p operator) moreBinding(than operator) bool {
	if p.prec != than.prec {
		return p.prec > than.prec
	}
	return p.right
}

// binop gets a binary operator for a token string. If there is no such binary
// operator, then the result has an op of nodeNone.
func binop(text string) operator {
	switch text {
	case "+":
		return operator{1, false, nodeAdd}
	case "-", "−":
		return operator{1, false, nodeSub}
	case "*", "×":
		return operator{5, false, nodeMul}
	case "/", "÷":
		return operator{5, false, nodeDiv}
	case "^":
		return operator{15, true, nodePow}
	default:
		return operator{}
	}
}

// unop gets a unary operator for a token string. If there is no such unary
// operator, then the result has an op of nodeNone.
func unop(text string) operator {
	switch text {
	case "+":
		return operator{10, true, nodeNop}
	case "-", "−":
		return operator{10, true, nodeNeg}
	default:
		return operator{}
	}
}

// postop gets the node kind for a suffix operator, or nodeNone if text is not
// one.
func postop(text string) nodeKind {
	switch text {
	case "!":
		return nodeFact
	case "%":
		return nodePct
	default:
		return nodeNone
	}
}

var (
	// termprec is the default precedence for parsing terms. Its prec
	// should match that of multiplication.
	termprec = operator{5, true, nodeMul}
	// powprec is the precedence of exponentiation.
	powprec = binop("^")
	// exprprec is the precedence required to parse an entire subexpression.
	exprprec = operator{-128, true, nodeNone}
)
