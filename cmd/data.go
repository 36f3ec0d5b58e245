package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/pedidos-cli/internal/analytics"
	"github.com/sells-group/pedidos-cli/internal/dataset"
	"github.com/sells-group/pedidos-cli/internal/render"
)

const previewRows = 5

var kpisCmd = &cobra.Command{
	Use:   "kpis",
	Short: "Show the headline indicators",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ds, err := loadDataset(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		k, err := analytics.ComputeKPIs(ds)
		if err != nil {
			return eris.Wrap(err, "kpis")
		}
		return render.KPIs(cmd.OutOrStdout(), k)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the first rows of each table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ds, err := loadDataset(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		rows, _ := cmd.Flags().GetInt("rows")
		out := cmd.OutOrStdout()
		for _, t := range ds.Tables() {
			if err := render.Preview(out, t.Head(rows)); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out)
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert the source workbooks to CSV",
	Long:  "Reads <name>.xlsx next to each configured CSV file and writes the first sheet as UTF-8 CSV. Each file succeeds or fails on its own.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		failed := convertAll(cfg.Data, cmd.OutOrStdout())
		if failed > 0 {
			return eris.Errorf("convert: %d of %d files failed", failed, len(cfg.Data.Sources()))
		}
		return nil
	},
}

// convertAll converts every source workbook, reporting each outcome on out.
// It returns the number of failures.
func convertAll(files dataset.Files, out io.Writer) int {
	failed := 0
	for _, src := range files.Sources() {
		xlsxPath := strings.TrimSuffix(src.Path, filepath.Ext(src.Path)) + ".xlsx"
		n, err := dataset.ConvertXLSXToCSV(xlsxPath, src.Path)
		if err != nil {
			failed++
			zap.L().Warn("convert failed", zap.String("file", xlsxPath), zap.Error(err))
			_, _ = fmt.Fprintf(out, "✗ %s: %v\n", filepath.Base(xlsxPath), err)
			continue
		}
		_, _ = fmt.Fprintf(out, "✓ %s → %s (%s linhas)\n", filepath.Base(xlsxPath), filepath.Base(src.Path), render.Integer(n))
	}
	return failed
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one table to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("table")
		dir, _ := cmd.Flags().GetString("out")

		ds, err := loadDataset(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		path, err := exportTable(ds, name, dir, time.Now())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

// exportTable writes the named table to <dir>/<Table>_<YYYYMMDD>.xlsx.
func exportTable(ds *dataset.Dataset, name, dir string, now time.Time) (string, error) {
	t, ok := ds.Table(name)
	if !ok {
		return "", eris.Errorf("export: unknown table %q (use clientes, pedidos, itens or produtos)", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create %s", dir)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.xlsx", t.Name, now.Format("20060102")))
	if err := dataset.WriteXLSX(t, path); err != nil {
		return "", err
	}
	zap.L().Info("table exported", zap.String("table", t.Name), zap.Int("rows", t.Len()), zap.String("path", path))
	return path, nil
}

func init() {
	previewCmd.Flags().Int("rows", previewRows, "rows shown per table")
	exportCmd.Flags().String("table", "", "table to export: clientes, pedidos, itens or produtos")
	exportCmd.Flags().String("out", ".", "output directory")
	_ = exportCmd.MarkFlagRequired("table")

	rootCmd.AddCommand(kpisCmd, previewCmd, convertCmd, exportCmd)
}
