package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctwhite/yield/pkg/genlang"
	"github.com/ctwhite/yield/pkg/symbol"
)

// stepsCmd represents the steps command
var stepsCmd = &cobra.Command{
	Use:   "steps file [generator ...]",
	Short: "Print compiled step programs",
	Long: `Load generator definitions from a file and print their compiled step
listings.  Without generator names every loaded definition is printed.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := printSteps(args[0], args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func printSteps(path string, names []string) error {
	rt := genlang.NewRuntime(nil)
	if err := rt.LoadFile(path); err != nil {
		return err
	}
	ids := rt.Names()
	if len(names) > 0 {
		ids = ids[:0]
		for _, name := range names {
			id, ok := rt.Table().Peek(name)
			if !ok {
				return fmt.Errorf("undefined generator: %s", name)
			}
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		def, ok := rt.Def(id)
		if !ok {
			return fmt.Errorf("undefined generator: %s", symbol.String(id, rt.Table()))
		}
		if _, err := def.Program().Format(os.Stdout, rt.Table()); err != nil {
			return err
		}
		fmt.Println()
	}
	return nil
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}
