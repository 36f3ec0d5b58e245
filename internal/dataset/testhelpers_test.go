package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeFixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "clients.csv", "CodigoCliente,TipoCliente\n1,Física\n2,Jurídica\n")
	writeFile(t, dir, "orders.csv", "SituacaoPedido,TotalPedido,ValorDesconto,FormaPagamento,FreteGratis,CodigoClientePedido\n"+
		"Faturado,100,10,Pix,Sim,1\n"+
		"Pendente,50,0,Boleto,nao,2\n")
	writeFile(t, dir, "items.csv", "CodigoProdutoVendido,QuantidadeVendidaItem\n10,3\n11,1\n")
	writeFile(t, dir, "products.csv", "CodigoProduto,Produto\n10,Caneca\n11,Camiseta\n")
	return dir
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}
