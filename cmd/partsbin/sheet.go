package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/inventory"
	"github.com/kalambet/partsbin/internal/spreadsheet"
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv>",
	Short: "Replace the active inventory with the contents of a spreadsheet",
	Long: `Replace the active inventory with the contents of a spreadsheet.

The sheet needs the columns Part Number, Type, Value and Quantity.
Purchase Link and Datasheet Link are optional. Nothing is changed when
any row is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := sheetFormat(cmd, args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			cs, err := spreadsheet.Import(f, format, a.registry)
			if err != nil {
				return err
			}
			n, err := svc.ReplaceAll(ctx, cs)
			if err != nil {
				return err
			}
			printSuccess("Imported %d component(s) into %s", n, a.manager.Active().Name)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file.xlsx|file.csv|->",
	Short: "Export the active inventory to a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := sheetFormat(cmd, args[0])
		if err != nil {
			return err
		}

		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			cs, err := svc.List(ctx, inventory.Filter{})
			if err != nil {
				return err
			}

			if args[0] == "-" {
				return spreadsheet.Export(cmd.OutOrStdout(), format, cs, a.registry)
			}
			err = writeFile(args[0], func(w io.Writer) error {
				return spreadsheet.Export(w, format, cs, a.registry)
			})
			if err != nil {
				return err
			}
			printSuccess("Exported %d component(s) to %s", len(cs), args[0])
			return nil
		})
	},
}

// createFile is replaced in tests.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeFile creates path and fills it with write. A failed write or close
// removes the partial file.
func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("writing %s: %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return write(f)
}

// sheetFormat uses --format when given, the file extension otherwise.
// Standard output defaults to CSV.
func sheetFormat(cmd *cobra.Command, path string) (spreadsheet.Format, error) {
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		return spreadsheet.ParseFormat(v)
	}
	if path == "-" {
		return spreadsheet.FormatCSV, nil
	}
	return spreadsheet.FormatFromPath(path)
}

func init() {
	importCmd.Flags().String("format", "", "xlsx or csv (default: from the file extension)")
	exportCmd.Flags().String("format", "", "xlsx or csv (default: from the file extension)")
}
