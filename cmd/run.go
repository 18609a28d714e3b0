package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ctwhite/yield/pkg/generator"
	"github.com/ctwhite/yield/pkg/genlang"
	"github.com/ctwhite/yield/pkg/lisp"
	"github.com/ctwhite/yield/pkg/machine"
)

var (
	runFeed  string
	runLimit int
	runTrace bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [flags] file generator [arg ...]",
	Short: "Run a generator to completion",
	Long: `Load generator definitions from a file, instantiate one, and advance it
until it finishes, printing every yielded value to stdout.  Arguments after
the generator name are parsed as source expressions.  Resume values may be
supplied through a feed file.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runGenerator(args[0], args[1], args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func runGenerator(path, name string, argText []string) error {
	rt := genlang.NewRuntime(nil)
	if err := rt.LoadFile(path); err != nil {
		return err
	}
	gargs, err := parseArgs(rt, argText)
	if err != nil {
		return err
	}
	feed, err := readFeed(runFeed)
	if err != nil {
		return err
	}
	in, err := rt.Instantiate(rt.Table().Intern(name), gargs...)
	if err != nil {
		return err
	}
	if runTrace {
		in.SetTrace(func(offset int, step machine.Step) {
			fmt.Fprintf(os.Stderr, "%4d %s\n", offset, step.Text)
		})
	}
	v := lisp.Nil()
	for i := 0; runLimit <= 0 || i < runLimit; i++ {
		st := in.Resume(v)
		switch st.Kind {
		case generator.StatusYield:
			fmt.Println(lisp.FormatString(st.Value, rt.Table()))
		case generator.StatusDone:
			fmt.Fprintln(os.Stderr, "done:", lisp.FormatString(st.Value, rt.Table()))
			return nil
		case generator.StatusError:
			return fmt.Errorf("unhandled condition: %s", lisp.FormatString(st.Value, rt.Table()))
		}
		v = lisp.Nil()
		if len(feed) > 0 {
			v = feed[0]
			feed = feed[1:]
		}
	}
	return fmt.Errorf("%s: still suspended after %d advances", name, runLimit)
}

func parseArgs(rt *genlang.Runtime, argText []string) ([]lisp.LVal, error) {
	var args []lisp.LVal
	p := genlang.NewParser(rt.Table())
	for _, a := range argText {
		vs, _, err := p.ParseLVal([]byte(a))
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, err)
		}
		args = append(args, vs...)
	}
	return args, nil
}

// feedFile is the schema of the --feed file.  Each entry in resume becomes
// the value of one successive resume, in order; once the list is exhausted
// the generator resumes with nil.
type feedFile struct {
	Resume []interface{} `yaml:"resume"`
}

func readFeed(path string) ([]lisp.LVal, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f feedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	vs := make([]lisp.LVal, len(f.Resume))
	for i, raw := range f.Resume {
		vs[i], err = feedValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: resume value %d: %w", path, i, err)
		}
	}
	return vs, nil
}

func feedValue(raw interface{}) (lisp.LVal, error) {
	switch x := raw.(type) {
	case nil:
		return lisp.Nil(), nil
	case bool:
		return lisp.Bool(x), nil
	case int:
		return lisp.Int(x), nil
	case float64:
		return lisp.Float(x), nil
	case string:
		return lisp.String(x), nil
	case []interface{}:
		items := make([]lisp.LVal, len(x))
		for i, e := range x {
			var err error
			items[i], err = feedValue(e)
			if err != nil {
				return lisp.Nil(), err
			}
		}
		return lisp.List(items...), nil
	}
	return lisp.Nil(), fmt.Errorf("unsupported value type %T", raw)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFeed, "feed", "f", "",
		"YAML file of values fed to successive resumes")
	runCmd.Flags().IntVarP(&runLimit, "limit", "n", 10000,
		"Maximum number of advances before giving up (0 for no limit)")
	runCmd.Flags().BoolVarP(&runTrace, "trace", "t", false,
		"Print executed steps to stderr")
}
