// Package livecalc turns keystrokes, typed characters, and pasted text into a
// calculator expression and decides when that expression is evaluated.
//
// Input of any shape goes through the same recognizer: "12+3*", "6.02E23",
// and "sqrt(4)" all become token sequences one key at a time, and anything the
// recognizer can't map yet is held as pending text after the last token until
// more input completes it. A Session owns that pending text and the
// calculator's display state. It asks an Engine for live previews while the
// user types, requests a result when the user presses =, and reconciles the
// asynchronous answers with whatever the user has done since.
//
// Everything on a Session happens on one goroutine. Engines compute in the
// background and Post their completions to a Loop, which the host drains.
package livecalc
