package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	de "github.com/chuacw/multidelphi/Delphi"
	"github.com/chuacw/multidelphi/internal/cli"
)

var opts cli.Options

type parsed struct {
	path string
	goal de.Goal
	last de.NodeID
}

func main() {
	root := &cobra.Command{
		Use:   "closurechecker [files or directories]",
		Short: "List the nested routines which need closure parameters",
		RunE:  run,
	}
	opts.Register(root)
	cli.Main(root)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	files := cli.Sources(cfg, args)
	if len(files) == 0 {
		fmt.Println("No source files provided. Nothing to do.")
		return nil
	}
	if opts.Watch {
		return cli.Watch(cmd.Context(), cfg.Log("watch"), files, func() { check(cfg, files) })
	}
	if check(cfg, files) > 0 {
		return cli.ErrFailed
	}
	return nil
}

func check(cfg *de.Config, files []string) int {
	success := 0
	failed := 0
	var goals []parsed
	for _, f := range files {
		if !cfg.IsSourceFile(f) {
			fmt.Printf("Skipping %s (not a source file)\n", f)
			continue
		}
		fmt.Printf("Parsing: %s\n", f)
		g, last, err := de.ParseFile(cfg, f)
		if err != nil {
			fmt.Printf("  %s %v\n", cli.Failed("FAILED:"), err)
			failed++
			continue
		}
		goals = append(goals, parsed{path: f, goal: g, last: last})
		success++
	}

	fmt.Println()
	fmt.Println(cli.Summary(success, failed))
	fmt.Println(cli.Header("=== Closure Conversion Analysis ==="))

	for _, p := range goals {
		b := de.NewBinder(de.NewRegistry(cfg), de.NewAnnotations(p.last))
		b.Path = p.path
		if !b.Bind(p.goal) {
			fmt.Printf("binding of '%s' %s with %d error(s):\n", p.goal.GoalName(), cli.Failed("FAILED"), len(b.Errors))
			cli.PrintErrors(os.Stdout, b.Errors, 10)
			failed++
			continue
		}
		ca := de.NewClosureAnalyzer(p.goal, b)
		if len(ca.Analyze()) == 0 {
			fmt.Printf("%s: %s\n", p.goal.GoalName(), cli.Muted("no nested routine captures outer variables"))
			continue
		}
		ca.PrintResults(os.Stdout)
	}
	return failed
}
