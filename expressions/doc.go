// Package expressions implements an arbitrary-precision floating-point calculator.
//
// The syntax of expressions is intended to be similar to math you'd write in
// your notes, with maybe a few more spaces. "2 x y" is a multiplication of
// three terms. So is "{2}[x](y)" (although not "2 xy"). "-2^2^n" is the same
// as "-(2^(2^n))", where "a^b" is exponentiation. "n!" is a factorial and
// "p%" is p/100; both bind to the term before them, so "2^3!" is "2^(3!)".
//
// Variables let you parse an expression once and evaluate it for many inputs,
// or you can clone contexts for several expressions to use the same variable
// definitions everywhere.
//
// ParseTokens parses calculator tokens with the same grammar, so an
// expression typed on keys needs no source text. Evaluator adapts the package
// to the livecalc.Engine interface. It parses the tokens of each formula,
// evaluates them in the background at increasing precision, and keeps the
// history of preserved results.
package expressions
