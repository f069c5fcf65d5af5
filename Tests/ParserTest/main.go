package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	de "github.com/chuacw/multidelphi/Delphi"
	"github.com/chuacw/multidelphi/internal/cli"
)

var (
	opts cli.Options
	dump bool
	bind bool
)

func main() {
	root := &cobra.Command{
		Use:   "parsertest [files or directories]",
		Short: "Parse Delphi source files and report the outcome per file",
		RunE:  run,
	}
	opts.Register(root)
	root.Flags().BoolVar(&dump, "dump", false, "print the syntax tree of each file as YAML")
	root.Flags().BoolVar(&bind, "bind", false, "resolve the names of each parsed file")
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
		return cli.Watch(cmd.Context(), cfg.Log("watch"), files, func() { parseAll(cfg, files) })
	}
	if parseAll(cfg, files) > 0 {
		return cli.ErrFailed
	}
	return nil
}

func parseAll(cfg *de.Config, files []string) int {
	success := 0
	failed := 0
	for _, f := range files {
		if !cfg.IsSourceFile(f) {
			fmt.Printf("Skipping %s (not a source file)\n", f)
			continue
		}
		fmt.Printf("Parsing: %s\n", f)
		if parseFile(cfg, f) {
			success++
		} else {
			failed++
		}
	}
	fmt.Println()
	fmt.Println(cli.Summary(success, failed))
	return failed
}

func goalKind(g de.Goal) string {
	switch g.(type) {
	case *de.Program:
		return "program"
	case *de.Library:
		return "library"
	case *de.Unit:
		return "unit"
	case *de.Package:
		return "package"
	}
	return "goal"
}

func parseFile(cfg *de.Config, path string) bool {
	g, last, err := de.ParseFile(cfg, path)
	if err != nil {
		fmt.Printf("  %s %v\n", cli.Failed("FAILED:"), err)
		return false
	}
	var ann *de.Annotations
	if bind {
		ann = de.NewAnnotations(last)
		b := de.NewBinder(de.NewRegistry(cfg), ann)
		b.Path = path
		ok := b.Bind(g)
		if len(b.Warnings) > 0 {
			fmt.Printf("  %d warning(s):\n", len(b.Warnings))
			cli.PrintErrors(os.Stdout, b.Warnings, 10)
		}
		if !ok {
			fmt.Printf("  %s with %d error(s):\n", cli.Failed("FAILED"), len(b.Errors))
			cli.PrintErrors(os.Stdout, b.Errors, 10)
			return false
		}
	}
	fmt.Printf("  %s: parsed %s %s\n", cli.OK("SUCCESS"), goalKind(g), g.GoalName())
	if dump {
		out, err := de.DumpYAML(g, ann)
		if err != nil {
			fmt.Printf("  %s %v\n", cli.Failed("dump:"), err)
			return false
		}
		os.Stdout.Write(out)
	}
	return true
}
