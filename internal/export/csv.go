// Package export renders the catalog view and committed orders as CSV
// documents.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/order"
)

// utf8BOM makes spreadsheet tools detect UTF-8 for Cyrillic headers.
const utf8BOM = "\ufeff"

var priceListHeader = []string{
	"Модель",
	"Категория",
	"Цена (₸)",
	"Наличие",
	"Параметры",
	"Изображения",
	"Информация о коробке",
	"Цвет",
}

// PriceListFilename names a price-list export for the given day.
func PriceListFilename(day time.Time) string {
	return fmt.Sprintf("TOPOMAX_Прайс-лист_%s.csv", day.Format(time.DateOnly))
}

// OrderFilename names an order export after the shop and commit day.
func OrderFilename(o order.Order) string {
	shop := strings.Join(strings.Fields(o.CustomerInfo.ShopName), "_")
	return fmt.Sprintf("Заказ_%s_%s.csv", shop, o.Date.Format(time.DateOnly))
}

// WritePriceListCSV emits products in the order given.
func WritePriceListCSV(w io.Writer, products []catalog.Product) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(priceListHeader); err != nil {
		return err
	}
	for _, p := range products {
		if err := writer.Write([]string{
			p.Model,
			p.Category,
			p.Price.String(),
			strconv.Itoa(p.StockQuantity),
			strings.Join(p.Parameters, "; "),
			strings.Join(p.Images, "; "),
			p.CartonInfo,
			p.Color,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteOrderCSV emits the customer block, the frozen line items and the
// grand total of one order.
func WriteOrderCSV(w io.Writer, o order.Order) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	c := o.CustomerInfo
	records := [][]string{
		{"Название магазина:", c.ShopName},
		{"Имя покупателя:", c.CustomerName},
		{"Номер телефона:", c.Phone},
		{"Адрес магазина:", c.Address},
		{},
		{"Дата заказа:", o.Date.Format("02.01.2006")},
		{},
		{"Модель", "Категория", "Количество", "Цена (₸)", "Сумма (₸)"},
	}
	for _, item := range o.Items {
		records = append(records, []string{
			item.Product.Model,
			item.Product.Category,
			strconv.Itoa(item.Quantity),
			item.Product.Price.StringFixed(2),
			item.LineTotal.StringFixed(2),
		})
	}
	records = append(records, []string{"", "", "", "ИТОГО:", o.GrandTotal.StringFixed(2)})

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
