// Package repl provides an interactive shell for loading generator
// definitions and stepping instances by hand.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ctwhite/yield/pkg/generator"
	"github.com/ctwhite/yield/pkg/genlang"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/symbol"
)

// RunRepl runs the shell until EOF.  Bare input is loaded as generator
// definitions; colon commands spawn and drive instances.
func RunRepl(prompt string) {
	rt := genlang.NewRuntime(nil)

	rl, err := readline.New(prompt)
	if err != nil {
		panic(err)
	}
	contPrompt := strings.Repeat(" ", len(prompt)) // prompt had better be ascii...

	var current *generator.Instance
	var buf []byte
	for {
		var line []byte
		line, err = rl.ReadSlice()
		if err != nil && err != readline.ErrInterrupt {
			break
		}
		if err == readline.ErrInterrupt {
			line = nil
			buf = nil
			rl.SetPrompt(prompt)
		}
		continued := len(buf) != 0
		if continued {
			buf = append(buf, '\n')
			line = append(buf, line...)
			buf = nil
			rl.SetPrompt(prompt)
		}
		if len(line) == 0 {
			continue
		}
		if !continued && line[0] == ':' {
			current = command(rt, current, strings.TrimSpace(string(line)))
			continue
		}
		err := rt.Load(line)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			buf = line
			rl.SetPrompt(contPrompt)
			continue
		}
		if err != nil {
			errln(err)
		}
	}
	if err != io.EOF {
		errln(err)
		return
	}
	errln("done")
}

func command(rt *genlang.Runtime, current *generator.Instance, line string) *generator.Instance {
	fields := strings.SplitN(line, " ", 2)
	rest := ""
	if len(fields) == 2 {
		rest = strings.TrimSpace(fields[1])
	}
	switch fields[0] {
	case ":help":
		errln(strings.TrimSpace(`
:list              list loaded generators
:steps <name>      print a generator's compiled steps
:spawn <name> ...  create an instance with the given arguments
:next              advance the instance
:resume <value>    advance the instance with a resume value
:close             close the instance
`))
	case ":list":
		for _, name := range rt.Names() {
			def, _ := rt.Def(name)
			errlnf("%s/%d", symbol.String(name, rt.Table()), def.Arity())
		}
	case ":steps":
		name := rt.Table().Intern(rest)
		def, ok := rt.Def(name)
		if !ok {
			errlnf("undefined generator: %s", rest)
			return current
		}
		def.Program().Format(os.Stderr, rt.Table())
	case ":spawn":
		parts := strings.SplitN(rest, " ", 2)
		if parts[0] == "" {
			errln("usage: :spawn <name> <arg> ...")
			return current
		}
		var args []lisp.LVal
		if len(parts) == 2 {
			var err error
			args, err = parseValues(rt, parts[1])
			if err != nil {
				errln(err)
				return current
			}
		}
		in, err := rt.Instantiate(rt.Table().Intern(parts[0]), args...)
		if err != nil {
			errln(err)
			return current
		}
		return in
	case ":next":
		advance(rt, current, lisp.Nil())
	case ":resume":
		vs, err := parseValues(rt, rest)
		if err != nil {
			errln(err)
			return current
		}
		v := lisp.Nil()
		if len(vs) > 0 {
			v = vs[0]
		}
		advance(rt, current, v)
	case ":close":
		if current == nil {
			errln("no instance")
			return nil
		}
		if err := current.Close(); err != nil {
			errln(err)
		}
		return nil
	default:
		errlnf("unknown command: %s (:help lists commands)", fields[0])
	}
	return current
}

func advance(rt *genlang.Runtime, in *generator.Instance, v lisp.LVal) {
	if in == nil {
		errln("no instance (:spawn creates one)")
		return
	}
	st := in.Resume(v)
	if st.Kind == generator.StatusYield && st.Tag != 0 {
		errlnf("%v [%s] %s", st.Kind, symbol.String(st.Tag, rt.Table()), lisp.FormatString(st.Value, rt.Table()))
		return
	}
	errlnf("%v %s", st.Kind, lisp.FormatString(st.Value, rt.Table()))
}

func parseValues(rt *genlang.Runtime, text string) ([]lisp.LVal, error) {
	vs, _, err := genlang.NewParser(rt.Table()).ParseLVal([]byte(text))
	return vs, err
}

func errlnf(format string, v ...interface{}) {
	if strings.HasSuffix(format, "\n") {
		errf(format, v...)
		return
	}
	errf(format+"\n", v...)
}

func errln(v ...interface{}) {
	fmt.Fprintln(os.Stderr, v...)
}

func errf(format string, v ...interface{}) {
	fmt.Fprintf(os.Stderr, format, v...)
}
