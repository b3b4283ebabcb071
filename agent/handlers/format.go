package handlers

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cast"

	statex "github.com/Yuvaramesh/sales-agent/agent/state"
)

// FormatPrice renders a price with thousands separators. Values that are not
// numeric are printed as given.
func FormatPrice(raw any) string {
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return fmt.Sprint(raw)
	}
	return humanize.Commaf(f)
}

// FormatMileage renders a mileage with thousands separators.
func FormatMileage(raw any) string {
	n, err := cast.ToInt64E(raw)
	if err != nil {
		if raw == nil {
			return "?"
		}
		return fmt.Sprint(raw)
	}
	return humanize.Comma(n)
}

func makeModel(v statex.Vehicle) string {
	return strings.TrimSpace(v.Str("make") + " " + v.Str("model"))
}

// SelectionMessage confirms a chosen vehicle and asks for every buyer field
// at once.
func SelectionMessage(v statex.Vehicle) string {
	var b strings.Builder
	b.WriteString("✓ Great choice! You've selected:\n\n")
	fmt.Fprintf(&b, "🚗 %s (%s)\n", makeModel(v), v.Str("year"))
	fmt.Fprintf(&b, "💰 Price: $%s\n", FormatPrice(v["price"]))
	fmt.Fprintf(&b, "📏 Mileage: %s km\n\n", FormatMileage(v["mileage"]))
	b.WriteString("To complete your order, please provide:\n")
	b.WriteString("• Your full name\n")
	b.WriteString("• Delivery address\n")
	b.WriteString("• Phone number\n")
	b.WriteString("• Email address\n\n")
	b.WriteString("You can provide them all at once or one at a time.")
	return b.String()
}

func OutOfRangeMessage(selection string, total int) string {
	return fmt.Sprintf("Selection %s is out of range. Please choose between 1 and %d.", selection, total)
}

func AskAddressMessage(v statex.Vehicle) string {
	return fmt.Sprintf("To complete your order for the %s, I just need your delivery address.\n\nPlease provide your full address.", makeModel(v))
}

func OrderSuccessMessage(orderID string, v statex.Vehicle, address string) string {
	return fmt.Sprintf("✅ Order placed successfully!\n\n"+
		"Order ID: %s\n"+
		"Vehicle: %s\n"+
		"Price: $%s\n"+
		"Delivery to: %s\n\n"+
		"Our team will contact you within 24 hours.",
		orderID, v.Title(), FormatPrice(v["price"]), address)
}

func OrderErrorMessage(err error) string {
	return fmt.Sprintf("Sorry, there was an error: %v. Please try again.", err)
}

// StateAnnotation describes the purchase progress for the delegate prompt.
// It is empty when no vehicle is selected or an order already exists.
func StateAnnotation(s *statex.Session) string {
	if !s.HasVehicle() || s.HasOrder() {
		return ""
	}
	v := s.SelectedVehicle
	out := fmt.Sprintf("\n[Selected: %s - $%s]", makeModel(v), FormatPrice(v["price"]))
	if addr := s.Field(statex.FieldAddress); addr != "" {
		out += "\n[Have address: " + addr + "]"
		out += "\n[READY TO ORDER - User just needs to confirm]"
	} else {
		out += "\n[Need address]"
	}
	return out
}

// DelegatePrompt wraps the user query with the conversation context and
// state annotation. With neither, the query is sent as is.
func DelegatePrompt(context, annotation, query string) string {
	if strings.TrimSpace(context) == "" {
		if strings.TrimSpace(annotation) == "" {
			return query
		}
		return strings.TrimLeft(annotation, "\n") + "\n\nUser: " + query + "\n"
	}
	return "\nPrevious:\n" + context + "\n" + annotation + "\n\nUser: " + query + "\n"
}
