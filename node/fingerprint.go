package node

import (
	"fmt"
	"strings"
)

// Fingerprint builds a deterministic structural string for n, used as a
// tie-break key where the reference implementation relied on Python's
// repr() for an object's identity-independent string form. Two distinct
// nodes built from the same construction sequence produce the same
// fingerprint; this is intentional — the fingerprint is a sort key, not a
// substitute for pointer identity.
func Fingerprint(n Node) string {
	var b strings.Builder
	writeFingerprint(&b, n)
	return b.String()
}

func writeFingerprint(b *strings.Builder, n Node) {
	if n == nil {
		b.WriteString("nil")
		return
	}
	switch v := n.(type) {
	case *Table:
		fmt.Fprintf(b, "Table(%s)", v.Name)
	case *FilteredTable:
		fmt.Fprintf(b, "FilteredTable(")
		writeFingerprint(b, v.Source)
		fmt.Fprintf(b, ",%s,%s,", v.Column, v.Operator)
		writeValueLiteral(b, v.Value)
		if v.OrNull {
			b.WriteString(",or_null")
		}
		b.WriteString(")")
	case *Row:
		fmt.Fprintf(b, "Row(")
		writeFingerprint(b, v.Source)
		fmt.Fprintf(b, ",%v,desc=%v)", v.SortColumns, v.Descending)
	case *Column:
		fmt.Fprintf(b, "Column(")
		writeFingerprint(b, v.Source)
		fmt.Fprintf(b, ",%s)", v.Column)
	case *ValueFromRow:
		fmt.Fprintf(b, "ValueFromRow(")
		writeFingerprint(b, v.Source)
		fmt.Fprintf(b, ",%s)", v.Column)
	case *ValueFromAggregate:
		fmt.Fprintf(b, "ValueFromAggregate(")
		writeFingerprint(b, v.Source)
		fmt.Fprintf(b, ",%s,%s)", v.Function, v.Column)
	case *ValueFromCategory:
		b.WriteString("ValueFromCategory(")
		for i, d := range v.Definitions {
			if i > 0 {
				b.WriteString(";")
			}
			fmt.Fprintf(b, "%s=", d.Label)
			writeComparatorFingerprint(b, d.When)
		}
		fmt.Fprintf(b, ",default=%s)", v.Default)
	case *ValueFromFunction:
		fmt.Fprintf(b, "ValueFromFunction(%s,[", v.FuncKind)
		for i, arg := range v.Arguments {
			if i > 0 {
				b.WriteString(",")
			}
			writeFingerprint(b, arg)
		}
		b.WriteString("])")
	case *Codelist:
		fmt.Fprintf(b, "Codelist(%s,#%d)", v.System, len(v.Codes))
	default:
		fmt.Fprintf(b, "%T(%p)", n, n)
	}
}

func writeComparatorFingerprint(b *strings.Builder, c *Comparator) {
	if c == nil {
		b.WriteString("nil")
		return
	}
	if c.Negated {
		b.WriteString("NOT(")
	}
	if c.IsLeaf() {
		writeFingerprint(b, c.LHS)
		fmt.Fprintf(b, "%s", c.Operator)
		writeValueLiteral(b, c.RHS)
	} else {
		b.WriteString("(")
		writeComparatorFingerprint(b, c.Left)
		fmt.Fprintf(b, "%s", c.Connector)
		writeComparatorFingerprint(b, c.Right)
		b.WriteString(")")
	}
	if c.Negated {
		b.WriteString(")")
	}
}

func writeValueLiteral(b *strings.Builder, v any) {
	if asNode, ok := v.(Node); ok {
		writeFingerprint(b, asNode)
		return
	}
	fmt.Fprintf(b, "%v", v)
}
