package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatRecordOrg renders a TradeRecord as an Org-mode entry. Structured
// facts go in the PROPERTIES drawer; the Notes heading is left for the
// trader.
func FormatRecordOrg(r TradeRecord) string {
	heading := fmt.Sprintf("** %s %s %s (%s)", strings.ToUpper(string(r.Status())), strings.ToUpper(r.Action), r.Symbol, shortID(r.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", r.ID)
	fmt.Fprintf(&b, ":TIMESTAMP: %s\n", r.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":SYMBOL: %s\n", r.Symbol)
	fmt.Fprintf(&b, ":ACTION: %s\n", r.Action)
	if r.OrderSize.Valid {
		fmt.Fprintf(&b, ":ORDER_SIZE: %s\n", r.OrderSize.Decimal.String())
	}
	fmt.Fprintf(&b, ":STATUS: %s\n", r.Status())
	switch res := r.Result.(type) {
	case Success:
		fmt.Fprintf(&b, ":ORDER_ID: %s\n", res.OrderID)
	case Failure:
		fmt.Fprintf(&b, ":ERROR: %s\n", res.Error)
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Notes\n- \n")

	return b.String()
}

// FormatRecordsOrg renders several records separated by blank lines.
func FormatRecordsOrg(recs []TradeRecord) string {
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatRecordOrg(r))
	}
	return b.String()
}

func shortID(full string) string {
	if full == "" {
		return "no-id"
	}
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
