package expressions

// ParseOption is an option for parsing.
type ParseOption interface {
	parseOption(parsectx) parsectx
}

type (
	funcopt struct {
		name string
		fn   Func
	}
	funcsopt map[string]Func
)

// parsectx holds general data for parsing. It is also a ParseOption.
type parsectx struct {
	// names is the set of variable names that have been seen this parse.
	names map[string]bool
	// funcs is the set of function names that trigger special parsing for ids.
	funcs map[string]Func
	// resv is a reserved parsed node. parsecall sets this when it parses a
	// single parenthesized term after a niladic function so that the parser
	// can back it out to an implicit multiplication.
	resv *node
	// nodefaults indicates that parse options have set all default functions.
	nodefaults bool
	// shared indicates that funcs belongs to a preset and must be copied
	// before it is modified.
	shared bool
}

// own ensures that p.funcs may be modified.
func (p *parsectx) own(n int) {
	if p.funcs != nil && !p.shared {
		return
	}
	m := make(map[string]Func, len(p.funcs)+n)
	for k, v := range p.funcs {
		m[k] = v
	}
	p.funcs = m
	p.shared = false
}

func (p *parsectx) checkdefaults() {
	if p.nodefaults {
		return
	}
	n := 0
	for k := range p.funcs {
		if _, ok := globalfuncs[k]; ok {
			n++
		}
	}
	if n == len(globalfuncs) {
		p.nodefaults = true
	}
}

// ParseFunc sets a function for parsing. To disable parsing a function, pass
// nil for fn.
func ParseFunc(name string, fn Func) ParseOption {
	return &funcopt{name, fn}
}

func (o *funcopt) parseOption(p parsectx) parsectx {
	p.own(1)
	p.funcs[o.name] = o.fn
	return p
}

// ParseFuncs sets a group of functions for parsing. To disable parsing any
// function, set it to nil.
func ParseFuncs(fns map[string]Func) ParseOption {
	return funcsopt(fns)
}

func (o funcsopt) parseOption(p parsectx) parsectx {
	p.own(len(o))
	for k, v := range o {
		p.funcs[k] = v
	}
	p.checkdefaults()
	return p
}

// DisableDefaultFuncs disables all default functions during parsing. Their
// names will be parsed as variables instead.
func DisableDefaultFuncs() ParseOption {
	return disablefns
}

var disablefns = funcsopt{
	"exp":  nil,
	"ln":   nil,
	"log":  nil,
	"sqrt": nil,
	"cos":  nil,
	"sin":  nil,
	"tan":  nil,
	"acos": nil,
	"asin": nil,
	"atan": nil,
	"pi":   nil,
	"π":    nil,
	"e":    nil,
}

// ParsingPreset creates a parsing preset that may be more efficient when using
// the same non-default parsing options for many calls to Parse. A preset
// panics when it would change any option from the default, but it is safe to
// apply other options after a preset.
func ParsingPreset(opts ...ParseOption) ParseOption {
	var p parsectx
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.funcs != nil {
		// If we've set any functions, add unset default ones now.
		for k, v := range globalfuncs {
			if _, ok := p.funcs[k]; !ok {
				p.funcs[k] = v
			}
		}
		p.nodefaults = true
	}
	return &p
}

func (o *parsectx) parseOption(p parsectx) parsectx {
	if p.funcs != nil {
		panic("expressions: preset applied to non-default parse config")
	}
	p.funcs = o.funcs
	p.nodefaults = o.nodefaults
	p.shared = true
	return p
}
