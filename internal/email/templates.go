package email

import (
	"fmt"
	"html"
	"mime"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/example/pricelist/internal/domain/order"
)

var printer = message.NewPrinter(language.Russian)

func encodeSubject(s string) string {
	return mime.QEncoding.Encode("utf-8", s)
}

// formatMoney groups thousands the Russian way and keeps two decimals.
func formatMoney(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return printer.Sprint(number.Decimal(f, number.Scale(2))) + " ₸"
}

func thumbnailTag(src string) string {
	if src == "" {
		return ""
	}
	return fmt.Sprintf(`<img src="%s" alt="" width="40" height="40" style="vertical-align: middle; margin-right: 8px; border-radius: 4px;">`, html.EscapeString(src))
}

// BuildNewOrderBody builds the HTML body for a committed order.
func BuildNewOrderBody(o order.Order) string {
	var rows strings.Builder
	for _, item := range o.Items {
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			thumbnailTag(item.Product.Thumbnail()),
			html.EscapeString(item.Product.Model),
			item.Quantity,
			formatMoney(item.Product.Price),
			formatMoney(item.LineTotal),
		))
	}

	c := o.CustomerInfo
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #0f172a; padding: 24px; border-radius: 10px 10px 0 0;">
		<h1 style="color: #38bdf8; margin: 0; font-size: 22px;">Новый заказ</h1>
	</div>

	<div style="background: #fff; padding: 24px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0; font-family: monospace;">%s</p>
		<p>Магазин: <b>%s</b><br>Контакт: %s<br>Телефон: %s<br>Адрес: %s</p>

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left;">Модель</th>
					<th style="padding: 12px; text-align: center;">Кол-во</th>
					<th style="padding: 12px; text-align: right;">Цена</th>
					<th style="padding: 12px; text-align: right;">Сумма</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 16px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Итого</span>
			<span style="font-size: 22px; font-weight: bold; margin-left: 10px;">%s</span>
		</div>
	</div>
</body>
</html>`,
		html.EscapeString(o.ID),
		html.EscapeString(c.ShopName),
		html.EscapeString(c.CustomerName),
		html.EscapeString(c.Phone),
		html.EscapeString(c.Address),
		rows.String(),
		formatMoney(o.GrandTotal),
	)
}

// BuildOrderDeletedBody lists the stock returned by a deleted order.
func BuildOrderDeletedBody(e order.OrderDeleted) string {
	ids := make([]string, 0, len(e.Restored))
	for id := range e.Restored {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows strings.Builder
	for _, id := range ids {
		rows.WriteString(fmt.Sprintf("<li>%s: +%d</li>", html.EscapeString(id), e.Restored[id]))
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
	<p>Заказ <b>%s</b> (%s) на сумму %s удалён. Остатки возвращены на склад:</p>
	<ul>%s</ul>
</body>
</html>`,
		html.EscapeString(e.OrderID),
		html.EscapeString(e.ShopName),
		formatMoney(e.GrandTotal),
		rows.String(),
	)
}
