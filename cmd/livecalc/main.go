package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/zephyrtronium/livecalc"
	"github.com/zephyrtronium/livecalc/expressions"
	"github.com/zephyrtronium/livecalc/store"
)

const historyFile = ".livecalc_history"

func main() {
	log.SetFlags(0)
	var (
		dbname, id string
		prec, maxp int
		deg        bool
		nl, echo   bool
	)
	flag.IntVar(&prec, "p", 64, "initial precision of calculations in bits")
	flag.IntVar(&maxp, "maxp", 1024, "precision in bits past which results are not refined")
	flag.BoolVar(&deg, "deg", false, "use degrees for trigonometric functions")
	flag.StringVar(&dbname, "db", "", "SQLite database for saving sessions and history")
	flag.StringVar(&id, "session", "", "session ID to resume (default new session)")
	flag.BoolVar(&nl, "n", false, "evaluate separate input lines as separate formulas")
	flag.BoolVar(&echo, "echo", false, "print formulas before their results")
	flag.Parse()
	if prec <= 0 || maxp <= 0 {
		log.Fatalf("precision (%d, %d) must be positive", prec, maxp)
	}
	if id != "" && dbname == "" {
		log.Fatal("-session requires -db")
	}
	cfg := config{prec: uint(prec), maxp: uint(maxp), deg: deg, echo: echo}
	var c *calc
	if dbname == "" {
		c = newCalc(cfg, nil, "")
	} else {
		st, err := store.NewSQLite(dbname)
		if err != nil {
			log.Fatal(err)
		}
		c = newCalc(cfg, st, id)
		if err := c.resume(); err != nil {
			st.Close()
			log.Fatal(err)
		}
	}

	var err error
	switch {
	case flag.NArg() > 0:
		err = c.batch(strings.NewReader(strings.Join(flag.Args(), "\n")), nl)
	case term.IsTerminal(int(os.Stdin.Fd())):
		err = c.repl()
	default:
		err = c.batch(bufio.NewReader(os.Stdin), nl)
	}
	if cerr := c.close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatal(err)
	}
}

type config struct {
	prec, maxp uint
	deg, echo  bool
}

// calc is a calculator session driven from the command line.
type calc struct {
	loop *livecalc.Loop
	ev   *expressions.Evaluator
	sess *livecalc.Session
	disp *display
	echo bool

	st    *store.SQLite
	id    string
	fresh bool
}

// newCalc creates a calculator. If st is not nil, the session is saved there
// under id, or under a new ID if id is empty.
func newCalc(cfg config, st *store.SQLite, id string) *calc {
	c := calc{loop: livecalc.NewLoop(), disp: new(display), echo: cfg.echo, st: st, id: id}
	opts := []expressions.EvaluatorOption{
		expressions.InitialPrec(cfg.prec),
		expressions.MaxPrec(cfg.maxp),
		expressions.Logger(log.Default()),
	}
	if st != nil {
		if c.id == "" {
			c.id = store.NewSessionID()
			c.fresh = true
		}
		opts = append(opts, expressions.WithHistory(st.History(c.id)))
	}
	c.ev = expressions.NewEvaluator(c.loop, opts...)
	c.ev.SetDegreeMode(cfg.deg)
	c.sess = livecalc.NewSession(c.ev, c.disp, livecalc.WithLogger(log.Default()))
	return &c
}

// resume restores the saved session, if there is one.
func (c *calc) resume() error {
	if c.fresh {
		return nil
	}
	ok, err := c.sess.RestoreFrom(c.st, c.id)
	if err != nil {
		return fmt.Errorf("restoring session %s: %w", c.id, err)
	}
	if !ok {
		// Nothing saved yet, but the history may have been written.
		if err := c.ev.LoadHistory(context.Background()); err != nil {
			return fmt.Errorf("loading history of session %s: %w", c.id, err)
		}
	}
	return c.settle(context.Background())
}

// close saves the session if there is a database.
func (c *calc) close() error {
	c.ev.CancelAll(true)
	c.ev.WaitForWrites()
	if c.st == nil {
		return nil
	}
	defer c.st.Close()
	if err := c.sess.SaveTo(c.st, c.id); err != nil {
		return fmt.Errorf("saving session %s: %w", c.id, err)
	}
	if c.fresh {
		fmt.Fprintln(os.Stderr, "session", c.id)
	}
	return nil
}

// settle runs the loop until the session has a final answer for the formula.
func (c *calc) settle(ctx context.Context) error {
	for {
		c.loop.RunPending()
		switch c.sess.State() {
		case livecalc.Animate:
			c.sess.AnimationDone()
			continue
		case livecalc.Evaluate, livecalc.Init, livecalc.InitForResult:
		default:
			if !c.ev.Busy() {
				return nil
			}
		}
		if err := c.loop.Wait(ctx); err != nil {
			return err
		}
	}
}

// calculate enters a line and prints its result.
func (c *calc) calculate(ctx context.Context, w io.Writer, line string) error {
	c.sess.Paste(line)
	c.sess.Evaluate()
	if err := c.settle(ctx); err != nil {
		// Interrupted. Stop the calculation but keep the formula.
		c.sess.Delete()
		c.loop.RunPending()
		return err
	}
	if c.echo {
		fmt.Fprintf(w, "%s = ", c.sess.Formula())
	}
	fmt.Fprintln(w, c.disp.answer(c.sess))
	return nil
}

// batch evaluates input. With nl, each line is a separate formula; otherwise
// the whole input is one formula.
func (c *calc) batch(in io.Reader, nl bool) error {
	ctx := context.Background()
	if !nl {
		b, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		return c.calculate(ctx, os.Stdout, string(b))
	}
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c.sess.Clear()
		if err := c.calculate(ctx, os.Stdout, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (c *calc) repl() error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	var histPath string
	if home, err := os.UserHomeDir(); err == nil {
		histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(histPath); err == nil {
			ln.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(histPath); err == nil {
				ln.WriteHistory(f)
				f.Close()
			}
		}()
	}

	if f := c.sess.Formula(); f != "" {
		fmt.Printf("%s = %s\n", f, c.disp.answer(c.sess))
	}
	for {
		line, err := ln.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) {
			c.sess.Clear()
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if strings.HasPrefix(line, ":") {
			if c.command(line) {
				return nil
			}
			continue
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		err = c.calculate(ctx, os.Stdout, line)
		stop()
		if err != nil {
			fmt.Println("interrupted")
		}
	}
}

// command runs a REPL command. The result is true if the REPL should exit.
func (c *calc) command(line string) bool {
	line = strings.ToLower(line)
	switch line {
	case ":quit", ":q":
		return true
	case ":clear":
		c.sess.Clear()
	case ":deg", ":rad":
		if c.ev.DegreeMode() != (line == ":deg") {
			c.sess.ToggleMode()
			c.settle(context.Background())
		}
	case ":history":
		for _, e := range c.ev.History() {
			mode := ""
			if e.Degrees {
				mode = " (deg)"
			}
			fmt.Printf("%d: %s = %s%s\n", e.Slot, e.Expr.Text(), e.Value, mode)
		}
	case ":session":
		if c.st == nil {
			fmt.Println("no database")
		} else {
			fmt.Println(c.id)
		}
	default:
		fmt.Println("commands: :quit :clear :deg :rad :history :session")
	}
	return false
}
