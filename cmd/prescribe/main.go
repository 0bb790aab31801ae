// Command prescribe runs a .prsd document: stdin is read to end before
// execution, program output goes to stdout, and a failure prints exactly
// one diagnostic line to stderr with exit code 1.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	lucid "github.com/prescribe-lang/prescribe"
)

var rootCmd = &cobra.Command{
	Use:   "prescribe <file.prsd>",
	Short: "Run a Prescribe/Lucid program",
	Long: `Prescribe executes the fenced code blocks of a .prsd document in order
as independent programs. A document with no fences is run as a single
program.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runFile,
}

func runFile(cmd *cobra.Command, args []string) error {
	path := args[0]
	if filepath.Ext(path) != ".prsd" {
		return fmt.Errorf("%s: input must be a .prsd file", path)
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	stdin, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	out, diag := lucid.RunDocument(string(doc), string(stdin), lucid.OsFS{})
	fmt.Print(out)
	if diag != nil {
		fmt.Fprintln(os.Stderr, diag.Error())
		os.Exit(1)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "prescribe:", err)
		os.Exit(1)
	}
}
