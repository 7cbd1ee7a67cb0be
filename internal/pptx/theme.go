package pptx

import (
	"fmt"
	"strings"
)

// theme renders a DrawingML theme from template tokens. Missing colors fall
// back to a neutral office palette.
func theme(t Theme, name string) []byte {
	dark := orDefault(t.Text, "1F2937")
	light := orDefault(t.Background, "FFFFFF")
	primary := orDefault(t.Primary, "1E3A8A")
	secondary := orDefault(t.Secondary, "475569")
	accent := orDefault(t.Accent, "F59E0B")
	heading := orDefault(t.Heading, "Calibri")
	body := orDefault(t.Body, "Calibri")
	if t.Name != "" {
		name = t.Name
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	fmt.Fprintf(&b, `<a:theme %s name="%s"><a:themeElements>`, nsA, esc(name))
	fmt.Fprintf(&b, `<a:clrScheme name="%s">`, esc(name))
	for _, c := range []struct{ tag, val string }{
		{"dk1", dark}, {"lt1", light}, {"dk2", secondary}, {"lt2", "F1F5F9"},
		{"accent1", primary}, {"accent2", secondary}, {"accent3", accent},
		{"accent4", "10B981"}, {"accent5", "6366F1"}, {"accent6", "EF4444"},
		{"hlink", "2563EB"}, {"folHlink", "7C3AED"},
	} {
		fmt.Fprintf(&b, `<a:%s><a:srgbClr val="%s"/></a:%s>`, c.tag, c.val, c.tag)
	}
	b.WriteString(`</a:clrScheme>`)
	fmt.Fprintf(&b, `<a:fontScheme name="%s">`, esc(name))
	fmt.Fprintf(&b, `<a:majorFont><a:latin typeface="%s"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>`, esc(heading))
	fmt.Fprintf(&b, `<a:minorFont><a:latin typeface="%s"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>`, esc(body))
	b.WriteString(`</a:fontScheme>`)
	b.WriteString(formatScheme)
	b.WriteString(`</a:themeElements><a:objectDefaults/><a:extraClrSchemeLst/></a:theme>`)
	return []byte(b.String())
}

const solidPhClr = `<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`

var formatScheme = `<a:fmtScheme name="Lectern">` +
	`<a:fillStyleLst>` + strings.Repeat(solidPhClr, 3) + `</a:fillStyleLst>` +
	`<a:lnStyleLst>` +
	`<a:ln w="6350">` + solidPhClr + `</a:ln>` +
	`<a:ln w="12700">` + solidPhClr + `</a:ln>` +
	`<a:ln w="19050">` + solidPhClr + `</a:ln>` +
	`</a:lnStyleLst>` +
	`<a:effectStyleLst>` + strings.Repeat(`<a:effectStyle><a:effectLst/></a:effectStyle>`, 3) + `</a:effectStyleLst>` +
	`<a:bgFillStyleLst>` + strings.Repeat(solidPhClr, 3) + `</a:bgFillStyleLst>` +
	`</a:fmtScheme>`
