package expressions

import (
	"math/big"

	"github.com/zephyrtronium/bigfloat"
)

var (
	one    = big.NewFloat(1)
	half   = big.NewFloat(0.5)
	ninety = big.NewFloat(90)
)

// maxTrigExp is the largest binary exponent of an argument to a trigonometric
// function that we are willing to reduce.
const maxTrigExp = 1 << 16

func piAt(w uint) *big.Float {
	return bigfloat.Pi(new(big.Float).SetPrec(w))
}

// round rounds q to the nearest integer, with ties away from zero.
func round(q *big.Float) *big.Int {
	i, _ := q.Int(nil)
	f := new(big.Float).SetPrec(q.Prec()).SetInt(i)
	f.Sub(q, f)
	switch {
	case f.Cmp(half) >= 0:
		i.Add(i, big.NewInt(1))
	case f.Neg(f).Cmp(half) >= 0:
		i.Sub(i, big.NewInt(1))
	}
	return i
}

// reduce splits x into k quarter turns and a remainder r in radians with
// |r| <= π/4, computed to w bits. k is in [0, 4).
func reduce(x *big.Float, deg bool, w uint) (k uint, r *big.Float) {
	if e := x.MantExp(nil); e > 0 {
		w += uint(e)
	}
	q := new(big.Float).SetPrec(w)
	step := new(big.Float).SetPrec(w)
	if deg {
		step.Set(ninety)
	} else {
		step.Quo(piAt(w), big.NewFloat(2))
	}
	q.Quo(x, step)
	n := round(q)
	r = new(big.Float).SetPrec(w).SetInt(n)
	r.Mul(r, step)
	r.Sub(x, r)
	if deg {
		r.Mul(r, piAt(w))
		r.Quo(r, big.NewFloat(180))
	}
	k = uint(new(big.Int).Mod(n, big.NewInt(4)).Uint64())
	return k, r
}

// converged reports whether term no longer affects sum at w bits.
func converged(term, sum *big.Float, w uint) bool {
	if term.Sign() == 0 {
		return true
	}
	if sum.Sign() == 0 {
		return false
	}
	return term.MantExp(nil) < sum.MantExp(nil)-int(w)-1
}

// sinSeries computes sin(r) for small |r|.
func sinSeries(r *big.Float, w uint) *big.Float {
	x2 := new(big.Float).SetPrec(w).Mul(r, r)
	term := new(big.Float).SetPrec(w).Set(r)
	sum := new(big.Float).SetPrec(w).Set(r)
	var d big.Float
	for n := int64(1); ; n++ {
		term.Mul(term, x2)
		term.Quo(term, d.SetInt64(2*n*(2*n+1)))
		term.Neg(term)
		if converged(term, sum, w) {
			return sum
		}
		sum.Add(sum, term)
	}
}

// cosSeries computes cos(r) for small |r|.
func cosSeries(r *big.Float, w uint) *big.Float {
	x2 := new(big.Float).SetPrec(w).Mul(r, r)
	term := new(big.Float).SetPrec(w).SetInt64(1)
	sum := new(big.Float).SetPrec(w).SetInt64(1)
	var d big.Float
	for n := int64(1); ; n++ {
		term.Mul(term, x2)
		term.Quo(term, d.SetInt64((2*n-1)*(2*n)))
		term.Neg(term)
		if converged(term, sum, w) {
			return sum
		}
		sum.Add(sum, term)
	}
}

// sincos computes sin(x) and cos(x) to w bits.
func sincos(x *big.Float, deg bool, w uint) (s, c *big.Float) {
	k, r := reduce(x, deg, w)
	s, c = sinSeries(r, w), cosSeries(r, w)
	switch k {
	case 1:
		s, c = c, s.Neg(s)
	case 2:
		s.Neg(s)
		c.Neg(c)
	case 3:
		s, c = c.Neg(c), s
	}
	return s, c
}

func trigArg(name string, in *big.Float) error {
	if in.IsInf() || in.MantExp(nil) > maxTrigExp {
		return &DomainError{X: new(big.Float).Copy(in), Func: name}
	}
	return nil
}

func sinFunc(ctx *Context, out, in *big.Float) error {
	if err := trigArg("sin", in); err != nil {
		return err
	}
	s, _ := sincos(in, ctx.Degrees(), out.Prec()+guard)
	out.Set(s)
	return nil
}

func cosFunc(ctx *Context, out, in *big.Float) error {
	if err := trigArg("cos", in); err != nil {
		return err
	}
	_, c := sincos(in, ctx.Degrees(), out.Prec()+guard)
	out.Set(c)
	return nil
}

func tanFunc(ctx *Context, out, in *big.Float) error {
	if err := trigArg("tan", in); err != nil {
		return err
	}
	s, c := sincos(in, ctx.Degrees(), out.Prec()+guard)
	if c.Sign() == 0 {
		return &DomainError{X: new(big.Float).Copy(in), Func: "tan"}
	}
	out.Quo(s, c)
	return nil
}

// atanRad computes atan(x) in radians to w bits.
func atanRad(x *big.Float, w uint) *big.Float {
	const halvings = 8
	a := new(big.Float).SetPrec(w).Abs(x)
	inv := a.Cmp(one) > 0
	if inv {
		a.Quo(one, a)
	}
	// atan(a) = 2 atan(a / (1 + sqrt(1 + a²)))
	t := new(big.Float).SetPrec(w)
	for i := 0; i < halvings; i++ {
		t.Mul(a, a)
		t.Add(t, one)
		t.Sqrt(t)
		t.Add(t, one)
		a.Quo(a, t)
	}
	a2 := new(big.Float).SetPrec(w).Mul(a, a)
	pw := new(big.Float).SetPrec(w).Set(a)
	sum := new(big.Float).SetPrec(w).Set(a)
	term := new(big.Float).SetPrec(w)
	var d big.Float
	for n := int64(1); ; n++ {
		pw.Mul(pw, a2)
		pw.Neg(pw)
		term.Quo(pw, d.SetInt64(2*n+1))
		if converged(term, sum, w) {
			break
		}
		sum.Add(sum, term)
	}
	sum.SetMantExp(sum, halvings)
	if inv {
		p := piAt(w)
		p.SetMantExp(p, -1)
		sum.Sub(p, sum)
	}
	if x.Signbit() {
		sum.Neg(sum)
	}
	return sum
}

// toDegrees converts r from radians to degrees in place.
func toDegrees(r *big.Float, w uint) *big.Float {
	r.Mul(r, big.NewFloat(180))
	return r.Quo(r, piAt(w))
}

// quarter returns a quarter turn in radians or degrees.
func quarter(deg bool, w uint) *big.Float {
	if deg {
		return new(big.Float).SetPrec(w).Set(ninety)
	}
	p := piAt(w)
	return p.SetMantExp(p, -1)
}

func atanFunc(ctx *Context, out, in *big.Float) error {
	w := out.Prec() + guard
	r := atanRad(in, w)
	if ctx.Degrees() {
		toDegrees(r, w)
	}
	out.Set(r)
	return nil
}

// asin computes asin(x) in radians or degrees, or returns false if x is
// outside [-1, 1].
func asin(x *big.Float, deg bool, w uint) (*big.Float, bool) {
	switch new(big.Float).Abs(x).Cmp(one) {
	case 1:
		return nil, false
	case 0:
		r := quarter(deg, w)
		if x.Signbit() {
			r.Neg(r)
		}
		return r, true
	}
	// asin(x) = atan(x / sqrt(1 - x²))
	t := new(big.Float).SetPrec(w).Mul(x, x)
	t.Sub(one, t)
	t.Sqrt(t)
	t.Quo(x, t)
	r := atanRad(t, w)
	if deg {
		toDegrees(r, w)
	}
	return r, true
}

func asinFunc(ctx *Context, out, in *big.Float) error {
	r, ok := asin(in, ctx.Degrees(), out.Prec()+guard)
	if !ok {
		return &DomainError{X: new(big.Float).Copy(in), Func: "asin"}
	}
	out.Set(r)
	return nil
}

func acosFunc(ctx *Context, out, in *big.Float) error {
	w := out.Prec() + guard
	r, ok := asin(in, ctx.Degrees(), w)
	if !ok {
		return &DomainError{X: new(big.Float).Copy(in), Func: "acos"}
	}
	out.Sub(quarter(ctx.Degrees(), w), r)
	return nil
}
