package normalize

import "github.com/grofunds/grofunds/internal/model"

// keyMap declares, per logical field, the priority-ordered document keys an
// enrichment payload may use for it. The first present, non-blank value wins;
// values are never merged across keys.
type keyMap struct {
	amount      []string
	currency    []string
	category    []string
	subcategory []string
	party       []string
	date        []string
	notes       []string
	confidence  []string
	title       []string
	startAmount []string
}

func keysFor(kind model.EntryKind) keyMap {
	switch kind {
	case model.KindIncome:
		return keyMap{
			amount:     []string{"amount", "income", "total", "value"},
			currency:   []string{"currency", "currencyCode"},
			category:   []string{"category", "type", "incomeType"},
			party:      []string{"source", "payer", "employer", "from"},
			date:       []string{"date", "when", "receivedAt", "paidAt"},
			notes:      []string{"notes", "memo", "description"},
			confidence: []string{"confidence", "score"},
		}
	case model.KindGoal:
		return keyMap{
			amount:      []string{"target", "targetAmount", "goalAmount", "amount"},
			currency:    []string{"currency", "currencyCode"},
			category:    []string{"type", "goalType", "category"},
			date:        []string{"due", "dueDate", "deadline"},
			notes:       []string{"notes", "memo", "description"},
			confidence:  []string{"confidence", "score"},
			title:       []string{"name", "goal", "title"},
			startAmount: []string{"current", "saved", "currentAmount", "progressAmount", "startAmount"},
		}
	default:
		return keyMap{
			amount:      []string{"amount", "total", "value"},
			currency:    []string{"currency", "currencyCode"},
			category:    []string{"category", "categoryOrType", "mainCategory"},
			subcategory: []string{"subcategory", "subCategory"},
			party:       []string{"merchant", "vendor", "payee", "store"},
			date:        []string{"date", "when", "purchasedAt"},
			notes:       []string{"notes", "memo", "description"},
			confidence:  []string{"confidence", "score"},
		}
	}
}
