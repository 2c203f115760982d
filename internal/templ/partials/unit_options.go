package partials

import (
	"context"
	"fmt"
	"io"
	"strings"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"github.com/a-h/templ"
)

const (
	PlaceholderNoBuilding = "Select a building"
	PlaceholderUnit       = "Select a unit"
	PlaceholderNoUnits    = "No units available"
)

const selectClass = "block w-full rounded-md border border-gray-300 px-3 py-2 text-sm focus:border-indigo-500 focus:outline-none"

// UnitOptions renders the unit select for the details step. Occupied units
// are listed but disabled.
func UnitOptions(data UnitOptionsData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		class := twmerge.Merge(selectClass, data.Class)
		disabled := data.BuildingID == "" || len(data.Units) == 0
		if disabled {
			class = twmerge.Merge(class, "cursor-not-allowed bg-gray-100 text-gray-500")
		}

		fmt.Fprintf(&b, `<select id="unitId" name="unitId" class="%s"`, templ.EscapeString(class))
		if disabled {
			b.WriteString(` disabled`)
		}
		b.WriteString(`>`)

		placeholder := PlaceholderUnit
		switch {
		case data.BuildingID == "":
			placeholder = PlaceholderNoBuilding
		case len(data.Units) == 0:
			placeholder = PlaceholderNoUnits
		}
		fmt.Fprintf(&b, `<option value="">%s</option>`, templ.EscapeString(placeholder))

		for _, u := range data.Units {
			fmt.Fprintf(&b, `<option value="%s"`, templ.EscapeString(u.ID))
			if !u.Selectable() {
				b.WriteString(` disabled`)
			} else if u.ID == data.SelectedID {
				b.WriteString(` selected`)
			}
			label := u.UnitNumber
			if !u.Selectable() {
				label += " (occupied)"
			}
			fmt.Fprintf(&b, `>%s</option>`, templ.EscapeString(label))
		}
		b.WriteString(`</select>`)

		if data.Error != "" {
			fmt.Fprintf(&b, `<p class="mt-1 text-sm text-red-600">%s</p>`, templ.EscapeString(data.Error))
		}

		_, err := io.WriteString(w, b.String())
		return err
	})
}
