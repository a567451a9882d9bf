package core

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// Element and attribute names of the vendor CAD export schema.
// Matching is case-insensitive; aliases cover the older export versions.
var (
	environmentTags = []string{"AMBIENT", "ENVIRONMENT"}
	itemTags        = []string{"ITEM"}
	budgetTags      = []string{"BUDGET", "PRICE"}

	descriptionAttrs = []string{"DESCRIPTION"}
	categoryAttrs    = []string{"CATEGORY", "FAMILY"}
	quantityAttrs    = []string{"QUANTITY"}
	repetitionAttrs  = []string{"REPETITION"}
	totalPriceAttrs  = []string{"TOTALPRICE", "TOTAL"}
	unitPriceAttrs   = []string{"UNITPRICE", "UNIT"}
)

// bomNode is a schema-agnostic view of one element of the export tree.
type bomNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []bomNode  `xml:",any"`
}

// ParseBOM walks a vendor CAD export and returns every priced item tagged with
// the environment it belongs to. It fails with an *ImportError wrapping
// ErrMalformedDocument when the tree cannot be decoded, and ErrNoPriceableItemsFound
// when the document decodes but contains nothing with a price.
func ParseBOM(data []byte) ([]RawLineItem, error) {
	var root bomNode
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charsetReader
	if err := dec.Decode(&root); err != nil {
		return nil, &ImportError{Kind: ErrMalformedDocument, Err: err}
	}
	if err := expectEOF(dec); err != nil {
		return nil, &ImportError{Kind: ErrMalformedDocument, Err: err}
	}

	items := walkBOM(root, DefaultEnvironmentName)
	if len(items) == 0 {
		return nil, &ImportError{Kind: ErrNoPriceableItemsFound}
	}
	return items, nil
}

// expectEOF accepts only whitespace, comments and processing instructions after the root element.
func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return fmt.Errorf("unexpected text after the root element")
			}
		default:
			return fmt.Errorf("unexpected content after the root element")
		}
	}
}

// walkBOM returns the items of node and its descendants. env is the environment
// name in effect for node; an environment node overrides it for its own subtree only.
func walkBOM(node bomNode, env string) []RawLineItem {
	var items []RawLineItem

	switch {
	case tagIs(node, environmentTags):
		if name := strings.TrimSpace(attr(node, descriptionAttrs)); name != "" {
			env = name
		}
	case tagIs(node, itemTags):
		if item, ok := readItem(node, env); ok {
			items = append(items, item)
		}
	}

	// Items may nest and environments always have children.
	for _, child := range node.Children {
		items = append(items, walkBOM(child, env)...)
	}
	return items
}

// readItem extracts one RawLineItem from an item node. ok is false when the
// node has no budget block or its price resolves to zero.
func readItem(node bomNode, env string) (RawLineItem, bool) {
	var budget *bomNode
	for i := range node.Children {
		if tagIs(node.Children[i], budgetTags) {
			budget = &node.Children[i]
			break
		}
	}
	if budget == nil {
		return RawLineItem{}, false
	}

	total := parseAmount(attr(*budget, totalPriceAttrs))
	unit := parseAmount(attr(*budget, unitPriceAttrs))

	qty := parseAmount(attr(node, quantityAttrs))
	if !qty.IsPositive() {
		qty = parseAmount(attr(node, repetitionAttrs))
	}
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(1)
	}

	if total.IsZero() && !unit.IsZero() {
		total = unit.Mul(qty)
	}
	if total.IsZero() {
		return RawLineItem{}, false
	}

	return RawLineItem{
		Description:     strings.TrimSpace(attr(node, descriptionAttrs)),
		Category:        strings.TrimSpace(attr(node, categoryAttrs)),
		Quantity:        qty,
		UnitPrice:       total.Div(qty),
		TotalPrice:      total,
		EnvironmentName: env,
	}, true
}

// parseAmount reads a vendor number. Comma decimal separators are accepted
// ("1.234,56", "12,5"); anything unparseable counts as absent (zero).
func parseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	if strings.Contains(s, ",") {
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func tagIs(node bomNode, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(node.XMLName.Local, n) {
			return true
		}
	}
	return false
}

// attr returns the first attribute matching any of names, in names order.
func attr(node bomNode, names []string) string {
	for _, n := range names {
		for _, a := range node.Attrs {
			if strings.EqualFold(a.Name.Local, n) {
				return a.Value
			}
		}
	}
	return ""
}

// charsetReader decodes the legacy single-byte encodings CAD tools still emit.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "":
		return input, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	default:
		return nil, fmt.Errorf("unsupported document encoding %q", label)
	}
}
