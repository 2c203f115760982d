package partials

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// ImportErrors renders the row/reason table of the last upload. Nothing is
// written when the upload reported no row errors.
func ImportErrors(data ImportErrorsData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(data.Errors) == 0 {
			return nil
		}

		var b strings.Builder
		b.WriteString(`<div id="import-errors" class="mt-6">`)
		if data.Message != "" {
			fmt.Fprintf(&b, `<p class="mb-2 text-sm font-medium text-red-700">%s</p>`, templ.EscapeString(data.Message))
		}
		b.WriteString(`<table class="min-w-full divide-y divide-gray-200 text-sm">`)
		b.WriteString(`<thead><tr><th class="px-3 py-2 text-left font-semibold">Row</th><th class="px-3 py-2 text-left font-semibold">Reason</th></tr></thead><tbody>`)
		for _, e := range data.Errors {
			fmt.Fprintf(&b, `<tr><td class="px-3 py-2">%d</td><td class="px-3 py-2">%s</td></tr>`, e.Row, templ.EscapeString(e.Reason))
		}
		b.WriteString(`</tbody></table></div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
