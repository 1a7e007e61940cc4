package source

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"orderstats/internal/model"
)

const fboCSV = "\xef\xbb\xbfНомер заказа;Артикул;Ваша цена;Количество;Статус;Принят в обработку\n" +
	"1001;SKU-1;\"1 234,56\";2;Доставлен;1.10.2025 7:26\n" +
	";;;;;\n" +
	"1002;SKU-2;99;1;\"отменён; клиентом\";1.10.2025 22:00\n"

func TestReadCSV_SemicolonWithBOM(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(fboCSV))
	require.NoError(t, err)

	assert.Equal(t, "Номер заказа", tbl.Header[0], "BOM must be stripped from the first header")
	require.Len(t, tbl.Rows, 2, "blank record skipped")
	assert.Equal(t, "1 234,56", tbl.Rows[0]["Ваша цена"])
	assert.Equal(t, "отменён; клиентом", tbl.Rows[1]["Статус"])
}

func TestReadCSV_Comma(t *testing.T) {
	in := "№ заказа,Артикул продавца,Цена,Кол-во,Статус,Дата создания\r\n" +
		"A-1,X,\"10,5\",3,доставляется,2025-09-27 21:10:51\r\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "10,5", tbl.Rows[0]["Цена"])
	assert.Equal(t, "2025-09-27 21:10:51", tbl.Rows[0]["Дата создания"])
}

func TestReadCSV_ShortRecordsAndEmpty(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a;b;c\n1\n"))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, model.RawRow{"a": "1"}, tbl.Rows[0])

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"Артикул", "Ваша цена", "Количество", "Статус", "Принят в обработку"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"SKU-9", "500", "1", "ожидает отгрузки", "5.10.2025 9:05:10"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	tbl, f2, err := Load("orders.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, XLSX, f2)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "SKU-9", tbl.Rows[0]["Артикул"])
	assert.Equal(t, "5.10.2025 9:05:10", tbl.Rows[0]["Принят в обработку"])
}

func TestReadJSON(t *testing.T) {
	tbl, err := ReadJSON(strings.NewReader(`{"dialect":"fbs","rows":[{"Артикул":"A","Статус":"возврат"}]}`))
	require.NoError(t, err)
	assert.Equal(t, model.FBS, tbl.Dialect)
	assert.Equal(t, []string{"Артикул", "Статус"}, tbl.Header)

	tbl, err = ReadJSON(strings.NewReader(`[{"Артикул":"B"}]`))
	require.NoError(t, err)
	assert.Equal(t, model.Dialect(""), tbl.Dialect)
	assert.Len(t, tbl.Rows, 1)

	_, err = ReadJSON(strings.NewReader(`{"dialect":"fbx","rows":[]}`))
	assert.ErrorIs(t, err, model.ErrUnknownDialect)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, XLSX, DetectFormat("", []byte("PK\x03\x04rest")))
	assert.Equal(t, JSON, DetectFormat("", []byte("  [{}]")))
	assert.Equal(t, CSV, DetectFormat("", []byte("a;b")))
	assert.Equal(t, JSON, DetectFormat("batch.JSON", []byte("a;b")))
	assert.Equal(t, CSV, DetectFormat("export.txt", []byte("a;b")))
}

func TestDetectDialect(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(fboCSV))
	require.NoError(t, err)
	d, err := DetectDialect(tbl)
	require.NoError(t, err)
	assert.Equal(t, model.FBO, d)

	byTimestamp := FromRows([]model.RawRow{{"Принят в обработку": "2025-09-27 21:10:51"}})
	d, err = DetectDialect(byTimestamp)
	require.NoError(t, err)
	assert.Equal(t, model.FBS, d, "timestamp layout outranks header names")

	byHeader := &Table{Header: []string{"№ заказа", "Статус"}}
	d, err = DetectDialect(byHeader)
	require.NoError(t, err)
	assert.Equal(t, model.FBS, d)

	_, err = DetectDialect(&Table{Header: []string{"foo"}})
	assert.ErrorIs(t, err, ErrDialectUndetected)
}
