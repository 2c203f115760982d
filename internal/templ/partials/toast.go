package partials

import (
	"context"
	"fmt"
	"io"
	"strings"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"
)

const toastBase = "pointer-events-auto flex w-full max-w-sm items-start gap-3 rounded-lg p-4 shadow-lg ring-1 ring-black/5"

func toastClass(t ToastType) string {
	switch t {
	case ToastSuccess:
		return twmerge.Merge(toastBase, "bg-green-50 text-green-800")
	case ToastError:
		return twmerge.Merge(toastBase, "bg-red-50 text-red-800")
	case ToastWarning:
		return twmerge.Merge(toastBase, "bg-yellow-50 text-yellow-800")
	default:
		return twmerge.Merge(toastBase, "bg-blue-50 text-blue-800")
	}
}

// Toast renders a snackbar. With OOB set the markup is wrapped for an htmx
// out-of-band swap, so it can ride along with any fragment response.
func Toast(data ToastData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if data.Message == "" {
			return nil
		}
		if data.Type == "" {
			data.Type = ToastInfo
		}

		var b strings.Builder
		if data.OOB {
			b.WriteString(`<div id="toast-container" hx-swap-oob="afterbegin">`)
		}

		role := "status"
		if data.Type == ToastError {
			role = "alert"
		}
		fmt.Fprintf(&b, `<div class="%s" role="%s" data-toast="%s"`,
			templ.EscapeString(toastClass(data.Type)), role, templ.EscapeString(string(data.Type)))
		if data.AutoDismiss {
			b.WriteString(` data-auto-dismiss="5000"`)
		}
		if data.RedirectTo != "" {
			fmt.Fprintf(&b, ` data-redirect="%s" data-redirect-delay="%d"`, templ.EscapeString(data.RedirectTo), data.RedirectAfterMS)
		}
		b.WriteString(`><div class="flex-1">`)
		if data.Title != "" {
			fmt.Fprintf(&b, `<p class="text-sm font-semibold">%s</p>`, templ.EscapeString(data.Title))
		}
		fmt.Fprintf(&b, `<p class="text-sm">%s</p>`, templ.EscapeString(data.Message))
		b.WriteString(`</div><button type="button" class="text-sm opacity-60 hover:opacity-100" data-dismiss aria-label="Dismiss">&times;</button></div>`)

		if data.OOB {
			b.WriteString(`</div>`)
		}

		_, err := io.WriteString(w, b.String())
		return err
	})
}
