// Prints the tokens the lexer finds in a Delphi source file

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	de "github.com/chuacw/multidelphi/Delphi"
	"github.com/chuacw/multidelphi/internal/cli"
)

var (
	opts     cli.Options
	comments bool
)

func main() {
	root := &cobra.Command{
		Use:     "lexertest <file.pas>",
		Short:   "Tokenize a Delphi source file",
		Example: "lexertest TestUnit.pas",
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}
	opts.Register(root)
	root.Flags().BoolVar(&comments, "comments", true, "list comments as tokens")
	cli.Main(root)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	filename := args[0]
	if !cfg.IsSourceFile(filename) {
		cfg.Log("lexer").Warn("unexpected extension", "file", filename)
	}
	if opts.Watch {
		return cli.Watch(cmd.Context(), cfg.Log("watch"), args, func() {
			if err := tokenize(cfg, filename); err != nil {
				fmt.Println(cli.Failed(err.Error()))
			}
		})
	}
	return tokenize(cfg, filename)
}

func tokenize(cfg *de.Config, filename string) error {
	lexer := de.NewLexer()
	lexer.SetLogger(cfg.Logger)
	lexer.SetIgnoreComments(!comments)
	if err := lexer.SetStreamFromFile(filename); err != nil {
		return fmt.Errorf("opening %s: %w", filename, err)
	}
	defer lexer.Stop()

	fmt.Printf("Tokenizing file: %s\n", filename)
	fmt.Println(cli.Header(fmt.Sprintf("%-12s %-12s %s", "Position", "Token", "Value")))

	tokenCount := 0
	for {
		token := lexer.NextToken()
		name := de.TokenTypeName(token.Type)
		if token.Type == de.TokEof {
			fmt.Printf("%-6d%-5d %-12s\n", token.LineNr, token.ColNr, name)
			break
		}
		if token.Type == de.TokInvalid {
			fmt.Printf("%-6d%-5d %-12s %s %s\n", token.LineNr, token.ColNr, name, cli.Failed("ERROR:"), string(token.Val))
			break
		}

		value := string(token.Val)
		switch {
		case value == "":
			fmt.Printf("%-6d%-5d %s\n", token.LineNr, token.ColNr, name)
		case token.Type == de.TokComment || token.Type == de.TokAsm:
			// first line only
			lines := strings.Split(value, "\n")
			if len(lines) > 1 {
				value = fmt.Sprintf("%s... (%d lines)", lines[0], len(lines))
			}
			fmt.Printf("%-6d%-5d %-12s %s\n", token.LineNr, token.ColNr, name, cli.Muted(value))
		default:
			fmt.Printf("%-6d%-5d %-12s %s\n", token.LineNr, token.ColNr, name, value)
		}
		tokenCount++
	}

	fmt.Printf("\nTokenization complete. Total tokens: %d\n", tokenCount)
	fmt.Printf("Source lines of code (SLOC): %d\n", lexer.GetSloc())
	return nil
}
