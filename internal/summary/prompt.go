package summary

import (
	"fmt"
	"strings"

	"github.com/example/pricelist/internal/domain/draft"
)

// BuildPrompt renders the draft as the instruction sent upstream.
func BuildPrompt(d draft.Derivation) string {
	lines := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		lines = append(lines, fmt.Sprintf(
			"- Товар: %s (%s)\n  Количество: %d\n  Цена за единицу: ₸%s\n  Промежуточный итог: ₸%s",
			item.Product.Model,
			item.Product.Category,
			item.Quantity,
			item.Product.Price.StringFixed(2),
			item.LineTotal.StringFixed(2),
		))
	}

	return fmt.Sprintf(`Вы — ассистент оптовой компании по продаже электроники TOPOMAX. Ваша задача — создать профессиональную и краткую сводку заказа на основе предоставленного списка товаров.

Сводка должна быть отформатирована как простой текст, подходящий для вставки в электронное письмо или официальный документ.

Вот детали заказа:

%s

---
Итого: ₸%s
---

Пожалуйста, выполните следующее:
1.  Начните с профессиональной темы, например "Сводка заказа для TOPOMAX".
2.  Напишите краткое вступительное предложение.
3.  Четко перечислите каждый товар, указав Модель, Количество и Промежуточную сумму.
4.  В конце укажите Итоговую сумму.
5.  Не добавляйте никаких лишних комментариев или разговорного текста, кроме самой сводки.
`, strings.Join(lines, "\n\n"), d.GrandTotal.StringFixed(2))
}
