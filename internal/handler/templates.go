package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/taqa/internal/domain"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},

		// Date/Time functions
		"year": func() int {
			return time.Now().Year()
		},

		// String functions
		"title": func(v interface{}) string {
			s := fmt.Sprint(v)
			return cases.Title(language.English).String(strings.ToLower(s))
		},
		// JSON encoding for safe JavaScript embedding
		"json": func(v interface{}) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return template.JS(`""`)
			}
			return template.JS(b)
		},

		"default": func(defaultVal, val interface{}) interface{} {
			if val == nil || val == "" || val == 0 {
				return defaultVal
			}
			return val
		},

		"dict": func(values ...interface{}) map[string]interface{} {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},

		// Form helpers
		"csrfField": func(token string) template.HTML {
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="csrf_token" value="%s">`, template.HTMLEscapeString(token)))
		},
		// fieldError looks up a field message, e.g. {{fieldError .Fields "item0_amount"}}
		"fieldError": func(fields domain.FieldErrors, key string) string {
			if fields == nil {
				return ""
			}
			return fields[key]
		},
		"itemField":    itemField,
		"readingField": readingField,

		// Money
		"money": func(d decimal.Decimal) string {
			return domain.FormatMoney(d)
		},

		// Wizard helpers
		"stepState": func(current, step domain.WizardStep) string {
			switch {
			case step < current:
				return "complete"
			case step == current:
				return "current"
			default:
				return "upcoming"
			}
		},

		// component embeds a templ fragment in an html/template page
		"component": func(c templ.Component) (template.HTML, error) {
			if c == nil {
				return "", nil
			}
			return templ.ToGoHTML(context.Background(), c)
		},
	}
}

// itemField names the inputs of invoice row i, e.g. "item0_amount".
func itemField(i int, name string) string {
	return fmt.Sprintf("item%d_%s", i, name)
}

// readingField names the inputs of reading row i.
func readingField(i int, name string) string {
	return fmt.Sprintf("reading%d_%s", i, name)
}
