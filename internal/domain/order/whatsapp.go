package order

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/types"
)

// FormatMessage renders the order as the chat text sent to the seller.
func FormatMessage(st types.Store, o types.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New order for %s\n", st.Name)
	if o.ID != uuid.Nil {
		fmt.Fprintf(&b, "Order %s\n", shortID(o.ID))
	}
	fmt.Fprintf(&b, "Customer: %s (+%s)\n\n", o.CustomerName, o.CustomerPhone)
	for _, item := range o.Items {
		fmt.Fprintf(&b, "%d x %s @ %s = %s\n",
			item.Quantity, item.Name, FormatMinor(item.UnitPriceMinor), FormatMinor(item.UnitPriceMinor*int64(item.Quantity)))
	}
	fmt.Fprintf(&b, "\nTotal: %s", FormatMinor(o.TotalMinor))
	if o.Note != nil && *o.Note != "" {
		fmt.Fprintf(&b, "\nNote: %s", *o.Note)
	}
	return b.String()
}

// WhatsAppURL builds a wa.me click-to-chat link. Spaces are sent as %20.
func WhatsAppURL(number, text string) string {
	return "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// FormatMinor prints an amount in minor units with two decimals.
func FormatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, minor/100, minor%100)
}

func shortID(id uuid.UUID) string {
	return "#" + strings.ToUpper(id.String()[:8])
}
