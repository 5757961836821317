package main

import (
	"fmt"
	"strings"

	"github.com/dolfandringa/cbor2"
)

// render renders a decoded value tree as indented text. It is not meant to
// round-trip; it exists so a human can eyeball what a Decoder produced.
func render(v any, indent int) string {
	pad := strings.Repeat("  ", indent)
	switch val := v.(type) {
	case *cbor.List:
		if len(val.Items) == 0 {
			return "[]"
		}
		var sb strings.Builder
		sb.WriteString("[\n")
		for _, item := range val.Items {
			fmt.Fprintf(&sb, "%s  %s\n", pad, render(item, indent+1))
		}
		fmt.Fprintf(&sb, "%s]", pad)
		return sb.String()
	case *cbor.Map:
		if len(val.Order) == 0 {
			return "{}"
		}
		var sb strings.Builder
		sb.WriteString("{\n")
		for _, key := range val.Order {
			fmt.Fprintf(&sb, "%s  %s: %s\n", pad, render(key, indent+1), render(val.Entries[key], indent+1))
		}
		fmt.Fprintf(&sb, "%s}", pad)
		return sb.String()
	case *cbor.Set:
		var parts []string
		for _, item := range val.Items {
			parts = append(parts, render(item, indent+1))
		}
		return "set{" + strings.Join(parts, ", ") + "}"
	case *cbor.Tag:
		return fmt.Sprintf("%d(%s)", val.Number, render(val.Value, indent))
	case cbor.ByteString:
		return fmt.Sprintf("h'%x'", val.Bytes())
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
