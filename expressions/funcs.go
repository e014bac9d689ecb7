package expressions

import (
	"math/big"

	"github.com/zephyrtronium/bigfloat"
)

// Func is a function from reals to reals. Functions may but generally should
// not look up variables. The function should set r to its result and should
// not use the value of r otherwise.
type Func interface {
	// Call evaluates the function. The function argument, if any, is passed
	// in invoc. The function must set r to its result and should not use the
	// value of r otherwise. invoc has a length for which CanCall returned
	// true. Call may modify the elements of invoc.
	Call(ctx *Context, invoc []*big.Float, r *big.Float) error

	// CanCall returns whether the function can be called with n arguments,
	// where n is 0 or 1. This controls how the expression parser handles
	// instances of this function:
	//
	// 	1.	If a bracketed expression follows a function, the parser treats it
	//		as the argument if CanCall(1). (If !CanCall(1) and CanCall(0),
	//		then the brackets are a multiplication; otherwise, they are
	//		rejected.)
	//
	// 	2.	If a bare term follows a function and CanCall(1), then the parser
	//		treats the term as an argument to the function. E.g., "exp x" is
	//		parsed as "exp(x)". (If !CanCall(1), then it is a multiplication.)
	CanCall(n int) bool
}

var globalfuncs = map[string]Func{
	"exp":  unary{"exp", expFunc},
	"ln":   unary{"ln", lnFunc},
	"log":  unary{"log", log10Func},
	"sqrt": unary{"sqrt", sqrtFunc},

	"sin":  unary{"sin", sinFunc},
	"cos":  unary{"cos", cosFunc},
	"tan":  unary{"tan", tanFunc},
	"asin": unary{"asin", asinFunc},
	"acos": unary{"acos", acosFunc},
	"atan": unary{"atan", atanFunc},

	// constants
	"pi": Niladic(bigfloat.Pi),
	"π":  Niladic(bigfloat.Pi),
	"e": Niladic(func(out *big.Float) *big.Float {
		var one big.Float
		one.SetFloat64(1)
		return bigfloat.Exp(out, &one)
	}),
}

// unary is a builtin function of one variable which checks its own domain.
type unary struct {
	name string
	f    func(ctx *Context, out, in *big.Float) error
}

func (u unary) Call(ctx *Context, invoc []*big.Float, r *big.Float) (err error) {
	in := invoc[0]
	defer catchNaN(u.name, in, &err)
	r.SetPrec(ctx.Prec())
	return u.f(ctx, r, in)
}

func (u unary) CanCall(n int) bool {
	return n == 1
}

type monadic struct {
	f func(out, in *big.Float) *big.Float
}

func (m monadic) Call(ctx *Context, invoc []*big.Float, r *big.Float) (err error) {
	in := invoc[0]
	defer catchNaN("", in, &err)
	r.SetPrec(ctx.Prec())
	m.f(r, in)
	return nil
}

func (m monadic) CanCall(n int) bool {
	return n == 1
}

// Monadic wraps a function of one variable into a Func. f must set out to its
// result, to the precision of out; its return value is always ignored. If f is
// called on an argument outside f's domain, it should panic with a value of
// type big.ErrNaN.
func Monadic(f func(out, in *big.Float) *big.Float) Func {
	return monadic{f}
}

type niladic struct {
	f func(out *big.Float) *big.Float
}

func (n niladic) Call(ctx *Context, invoc []*big.Float, r *big.Float) (err error) {
	r.SetPrec(ctx.Prec())
	n.f(r)
	return nil
}

func (n niladic) CanCall(k int) bool {
	return k == 0
}

// Niladic wraps a function of zero variables, generally a function which
// computes a constant, into a Func. f must set out to its result; its return
// value is always ignored. Unlike Monadic, the wrapped function is expected
// never to panic.
func Niladic(f func(out *big.Float) *big.Float) Func {
	return niladic{f}
}

// catchNaN recovers a big.ErrNaN panic into a *DomainError. Other panics
// propagate.
func catchNaN(name string, x *big.Float, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(big.ErrNaN); !ok {
		panic(r)
	}
	*err = &DomainError{X: new(big.Float).Copy(x), Func: name}
}

// DomainError is an error returned when a function or operator is applied to
// arguments outside its domain.
type DomainError struct {
	// X is the out-of-domain argument.
	X *big.Float
	// Func is a name identifying the function.
	Func string
}

func (err *DomainError) Error() string {
	r := "outside domain"
	if err.X != nil {
		r = err.X.String() + " " + r
	}
	if err.Func != "" {
		r += " of " + err.Func
	}
	return r
}

// guard is the number of extra bits used for intermediate results.
const guard = 64

// expLimit bounds the magnitude of arguments to exp whose results are
// representable.
var expLimit = big.NewFloat(1.48e9)

func expFunc(ctx *Context, out, in *big.Float) error {
	exp(out, in)
	return nil
}

// exp sets z to e**x, rounded to z's precision. Results which would overflow
// the exponent range are infinite or zero.
func exp(z, x *big.Float) *big.Float {
	switch {
	case x.IsInf():
		if x.Signbit() {
			return z.SetInt64(0)
		}
		return z.SetInf(false)
	case new(big.Float).Abs(x).Cmp(expLimit) > 0:
		if x.Signbit() {
			return z.SetInt64(0)
		}
		return z.SetInf(false)
	}
	return bigfloat.Exp(z, x)
}

func lnFunc(ctx *Context, out, in *big.Float) error {
	if in.Sign() <= 0 {
		return &DomainError{X: new(big.Float).Copy(in), Func: "ln"}
	}
	if in.IsInf() {
		out.SetInf(false)
		return nil
	}
	bigfloat.Log(out, in)
	return nil
}

func log10Func(ctx *Context, out, in *big.Float) error {
	if in.Sign() <= 0 {
		return &DomainError{X: new(big.Float).Copy(in), Func: "log"}
	}
	if in.IsInf() {
		out.SetInf(false)
		return nil
	}
	w := out.Prec() + guard
	x := bigfloat.Log(new(big.Float).SetPrec(w), in)
	ten := bigfloat.Log(new(big.Float).SetPrec(w), big.NewFloat(10))
	out.Quo(x, ten)
	return nil
}

func sqrtFunc(ctx *Context, out, in *big.Float) error {
	if in.Signbit() && in.Sign() != 0 {
		// Values that only fail to be zero through rounding at this precision
		// are treated as zero.
		if in.IsInf() || in.MantExp(nil) > 16-int(ctx.Prec()) {
			return &DomainError{X: new(big.Float).Copy(in), Func: "sqrt"}
		}
		out.SetInt64(0)
		return nil
	}
	if in.Sign() == 0 {
		out.SetInt64(0)
		return nil
	}
	out.Sqrt(in)
	return nil
}

// pow sets z to x**y. z may alias x or y.
func pow(ctx *Context, z, x, y *big.Float) error {
	prec := ctx.Prec()
	switch {
	case y.Sign() == 0:
		z.SetPrec(prec).SetInt64(1)
		return nil
	case x.IsInf() || y.IsInf():
		return &DomainError{X: new(big.Float).Copy(y), Func: "^"}
	case x.Sign() == 0:
		if y.Signbit() {
			return &DomainError{X: new(big.Float).Copy(y), Func: "^"}
		}
		z.SetPrec(prec).SetInt64(0)
		return nil
	}
	if y.IsInt() {
		if n, acc := y.Int64(); acc == big.Exact {
			z.Set(powInt(x, n, prec))
			return nil
		}
	} else if x.Signbit() {
		return &DomainError{X: new(big.Float).Copy(x), Func: "^"}
	}
	// General case: exp(y*ln|x|), negated for negative bases with odd
	// exponents.
	odd := false
	if x.Signbit() {
		i, _ := y.Int(nil)
		odd = i.Bit(0) == 1
	}
	w := prec + guard
	t := new(big.Float).SetPrec(w).Abs(x)
	bigfloat.Log(t, t)
	t.Mul(t, y)
	r := exp(new(big.Float).SetPrec(w), t)
	if odd {
		r.Neg(r)
	}
	z.SetPrec(prec).Set(r)
	return nil
}

// powInt computes x**n by repeated squaring.
func powInt(x *big.Float, n int64, prec uint) *big.Float {
	w := prec + guard
	neg := n < 0
	if neg {
		n = -n
	}
	b := new(big.Float).SetPrec(w).Set(x)
	r := new(big.Float).SetPrec(w).SetInt64(1)
	for n > 0 {
		if n&1 != 0 {
			r.Mul(r, b)
		}
		n >>= 1
		if n > 0 {
			b.Mul(b, b)
		}
	}
	if neg {
		if r.Sign() == 0 {
			return r.SetInf(r.Signbit())
		}
		r.Quo(new(big.Float).SetPrec(w).SetInt64(1), r)
	}
	return new(big.Float).SetPrec(prec).Set(r)
}

// maxFactorial is the largest argument for which factorials are computed.
const maxFactorial = 100000

// factorial sets z to x!. x must be a non-negative integer. z may alias x.
func factorial(ctx *Context, z, x *big.Float) error {
	if x.Signbit() || !x.IsInt() || x.IsInf() {
		if x.IsInf() && !x.Signbit() {
			return &TooLargeError{Op: "!"}
		}
		return &DomainError{X: new(big.Float).Copy(x), Func: "!"}
	}
	n, acc := x.Int64()
	if acc != big.Exact || n > maxFactorial {
		return &TooLargeError{Op: "!"}
	}
	r := new(big.Float).SetPrec(ctx.Prec() + guard).SetInt64(1)
	var k big.Float
	for i := int64(2); i <= n; i++ {
		r.Mul(r, k.SetInt64(i))
	}
	z.SetPrec(ctx.Prec()).Set(r)
	return nil
}
