// Command xlsxdump prints the first worksheet of a workbook as JSON.
//
//	xlsxdump salary.xlsx --pretty
//	xlsxdump salary.xlsx.gz --headers-only
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/paystub/internal/payroll"
	"github.com/JonMunkholm/paystub/internal/xlsx"
)

type options struct {
	pretty      bool
	headersOnly bool
	maxSize     int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "xlsxdump <file.xlsx>",
		Short: "Print the first worksheet of a workbook as JSON",
		Long: `xlsxdump decodes the first worksheet of an .xlsx workbook the same way
the payslip importer does and prints it as JSON. Row 1 becomes the headers.
Workbooks wrapped in gzip, bzip2, xz, zstd or lz4 are unwrapped first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")
	cmd.Flags().BoolVar(&opts.headersOnly, "headers-only", false, "Print only the header row")
	cmd.Flags().Int64Var(&opts.maxSize, "max-size", 256<<20, "Largest unwrapped workbook to accept, in bytes")

	return cmd
}

func run(w io.Writer, path string, opts options) error {
	table, err := load(path, opts.maxSize)
	if err != nil {
		return err
	}

	var v any = table
	if opts.headersOnly {
		v = table.Headers
	}

	var out []byte
	if opts.pretty {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

func load(path string, maxSize int64) (*xlsx.Table, error) {
	c, err := payroll.DetectFile(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if c == payroll.CompressionNone {
		return xlsx.ReadFile(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := payroll.Decompress(c, raw, maxSize)
	if err != nil {
		return nil, err
	}
	return xlsx.ReadBytes(data)
}

// describe prefixes decode failures with their kind.
func describe(err error) string {
	var xerr *xlsx.Error
	if errors.As(err, &xerr) {
		if xerr.Part != "" {
			return fmt.Sprintf("xlsxdump: [%s] %s: %v", xerr.Kind, xerr.Part, xerr.Err)
		}
		return fmt.Sprintf("xlsxdump: [%s] %v", xerr.Kind, xerr.Err)
	}
	return "xlsxdump: " + err.Error()
}
