// Package table renders pterm tables the same way across commands.
package table

import (
	"github.com/pterm/pterm"
)

// PrintTableNoPad prints rows as a table without the default pterm padding.
// When hasHeader is set the first row is styled as a header.
func PrintTableNoPad(rows pterm.TableData, hasHeader bool) {
	p := pterm.DefaultTable.WithData(rows).WithLeftAlignment()
	if hasHeader {
		p = p.WithHasHeader()
	}
	_ = p.Render()
}

// PropertyRows starts a two column Property/Value table.
func PropertyRows() pterm.TableData {
	return pterm.TableData{{"Property", "Value"}}
}
