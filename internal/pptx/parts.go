package pptx

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

const (
	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
	nsA       = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR       = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP       = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`
	nsAll     = nsA + " " + nsR + " " + nsP

	relBase       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	ctBase        = "application/vnd.openxmlformats-officedocument.presentationml."
	emptyGroup    = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`
	masterClrMap  = `<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`
	clrMapOverlay = `<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>`
)

// Text frame geometry in EMU.
const (
	margin      = 457200
	titleHeight = 1143000
	bodyTop     = 1828800
	bodyHeight  = 4572000
	frameWidth  = 4648200
	gutter      = 228600
)

type pkg struct {
	p     Presentation
	media map[int]string
}

func newPackage(p Presentation) *pkg {
	media := make(map[int]string)
	count := 0
	for i, slide := range p.Slides {
		if !slide.hasPicture() {
			continue
		}
		count++
		media[i+1] = fmt.Sprintf("image%d.%s", count, imageExt(slide.Image.Ext))
	}
	return &pkg{p: p, media: media}
}

func imageExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return "jpeg"
	default:
		return "png"
	}
}

func (k *pkg) hasNotes(s Slide) bool {
	return strings.TrimSpace(s.Notes) != ""
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func rel(id, kind, target string) string {
	return fmt.Sprintf(`<Relationship Id="%s" Type="%s%s" Target="%s"/>`, id, relBase, kind, target)
}

func rels(entries ...string) []byte {
	return []byte(xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		strings.Join(entries, "") +
		`</Relationships>`)
}

func (k *pkg) contentTypes() []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	b.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	b.WriteString(`<Default Extension="jpeg" ContentType="image/jpeg"/>`)
	override := func(part, ct string) {
		fmt.Fprintf(&b, `<Override PartName="%s" ContentType="%s"/>`, part, ct)
	}
	override("/ppt/presentation.xml", ctBase+"presentation.main+xml")
	override("/ppt/slideMasters/slideMaster1.xml", ctBase+"slideMaster+xml")
	override("/ppt/slideLayouts/slideLayout1.xml", ctBase+"slideLayout+xml")
	override("/ppt/notesMasters/notesMaster1.xml", ctBase+"notesMaster+xml")
	override("/ppt/theme/theme1.xml", "application/vnd.openxmlformats-officedocument.theme+xml")
	override("/ppt/theme/theme2.xml", "application/vnd.openxmlformats-officedocument.theme+xml")
	for i, slide := range k.p.Slides {
		override(fmt.Sprintf("/ppt/slides/slide%d.xml", i+1), ctBase+"slide+xml")
		if k.hasNotes(slide) {
			override(fmt.Sprintf("/ppt/notesSlides/notesSlide%d.xml", i+1), ctBase+"notesSlide+xml")
		}
	}
	override("/docProps/core.xml", "application/vnd.openxmlformats-package.core-properties+xml")
	override("/docProps/app.xml", "application/vnd.openxmlformats-officedocument.extended-properties+xml")
	b.WriteString(`</Types>`)
	return []byte(b.String())
}

func rootRels() []byte {
	return rels(
		rel("rId1", "officeDocument", "ppt/presentation.xml"),
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>`,
		rel("rId3", "extended-properties", "docProps/app.xml"),
	)
}

func (k *pkg) core() []byte {
	created := k.p.Created
	if created.IsZero() {
		created = time.Unix(0, 0)
	}
	return []byte(xmlHeader +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + esc(k.p.Title) + `</dc:title>` +
		`<dc:creator>` + esc(k.p.Author) + `</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + created.UTC().Format(time.RFC3339) + `</dcterms:created>` +
		`</cp:coreProperties>`)
}

func (k *pkg) app() []byte {
	return []byte(fmt.Sprintf(xmlHeader+
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">`+
		`<Application>Lectern</Application><Slides>%d</Slides><Notes>%d</Notes></Properties>`,
		len(k.p.Slides), k.notesCount()))
}

func (k *pkg) notesCount() int {
	n := 0
	for _, s := range k.p.Slides {
		if k.hasNotes(s) {
			n++
		}
	}
	return n
}

// Relationship ids in presentation.xml.rels: rId1 master, rId2.. slides,
// then notes master and theme.
func (k *pkg) notesMasterRelID() string {
	return fmt.Sprintf("rId%d", len(k.p.Slides)+2)
}

func (k *pkg) themeRelID() string {
	return fmt.Sprintf("rId%d", len(k.p.Slides)+3)
}

func (k *pkg) presentation() []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:presentation ` + nsAll + ` saveSubsetFonts="1">`)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	fmt.Fprintf(&b, `<p:notesMasterIdLst><p:notesMasterId r:id="%s"/></p:notesMasterIdLst>`, k.notesMasterRelID())
	b.WriteString(`<p:sldIdLst>`)
	for i := range k.p.Slides {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, i+2)
	}
	b.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="6858000" cy="9144000"/>`, SlideWidth, SlideHeight)
	b.WriteString(`</p:presentation>`)
	return []byte(b.String())
}

func (k *pkg) presentationRels() []byte {
	entries := []string{rel("rId1", "slideMaster", "slideMasters/slideMaster1.xml")}
	for i := range k.p.Slides {
		entries = append(entries, rel(fmt.Sprintf("rId%d", i+2), "slide", fmt.Sprintf("slides/slide%d.xml", i+1)))
	}
	entries = append(entries,
		rel(k.notesMasterRelID(), "notesMaster", "notesMasters/notesMaster1.xml"),
		rel(k.themeRelID(), "theme", "theme/theme1.xml"),
	)
	return rels(entries...)
}

func (k *pkg) master() []byte {
	return []byte(xmlHeader +
		`<p:sldMaster ` + nsAll + `><p:cSld>` +
		background(k.p.Theme.Background) +
		`<p:spTree>` + emptyGroup + `</p:spTree></p:cSld>` +
		masterClrMap +
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
		`</p:sldMaster>`)
}

func masterRels() []byte {
	return rels(
		rel("rId1", "slideLayout", "../slideLayouts/slideLayout1.xml"),
		rel("rId2", "theme", "../theme/theme1.xml"),
	)
}

func layout() []byte {
	return []byte(xmlHeader +
		`<p:sldLayout ` + nsAll + ` type="blank" preserve="1"><p:cSld name="Blank">` +
		`<p:spTree>` + emptyGroup + `</p:spTree></p:cSld>` + clrMapOverlay + `</p:sldLayout>`)
}

func layoutRels() []byte {
	return rels(rel("rId1", "slideMaster", "../slideMasters/slideMaster1.xml"))
}

func notesMaster() []byte {
	return []byte(xmlHeader +
		`<p:notesMaster ` + nsAll + `><p:cSld><p:spTree>` + emptyGroup + `</p:spTree></p:cSld>` +
		masterClrMap + `</p:notesMaster>`)
}

func notesMasterRels() []byte {
	return rels(rel("rId1", "theme", "../theme/theme2.xml"))
}

func background(hex string) string {
	if hex == "" {
		return ""
	}
	return `<p:bg><p:bgPr><a:solidFill><a:srgbClr val="` + hex + `"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>`
}

func slideRels(n int, media string, notes bool) []byte {
	entries := []string{rel("rId1", "slideLayout", "../slideLayouts/slideLayout1.xml")}
	if media != "" {
		entries = append(entries, rel("rId2", "image", "../media/"+media))
	}
	if notes {
		entries = append(entries, rel("rId3", "notesSlide", fmt.Sprintf("../notesSlides/notesSlide%d.xml", n)))
	}
	return rels(entries...)
}

func notesSlide(notes string) []byte {
	var body strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(notes), "\n") {
		body.WriteString(`<a:p><a:r><a:rPr lang="en-US" dirty="0"/><a:t>` + esc(line) + `</a:t></a:r></a:p>`)
	}
	return []byte(xmlHeader +
		`<p:notes ` + nsAll + `><p:cSld><p:spTree>` + emptyGroup +
		`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Notes Placeholder"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr>` +
		`<p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr><p:spPr/>` +
		`<p:txBody><a:bodyPr/><a:lstStyle/>` + body.String() + `</p:txBody></p:sp>` +
		`</p:spTree></p:cSld>` + clrMapOverlay + `</p:notes>`)
}

func notesSlideRels(n int) []byte {
	return rels(
		rel("rId1", "notesMaster", "../notesMasters/notesMaster1.xml"),
		rel("rId2", "slide", fmt.Sprintf("../slides/slide%d.xml", n)),
	)
}

type box struct {
	x, y, cx, cy int
}

func (b box) xfrm() string {
	return fmt.Sprintf(`<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, b.x, b.y, b.cx, b.cy)
}

type run struct {
	text   string
	size   int
	bold   bool
	color  string
	center bool
	bullet bool
}

func (r run) paragraph(font string) string {
	var ppr string
	switch {
	case r.bullet:
		ppr = `<a:pPr marL="342900" indent="-342900"><a:buFont typeface="Arial"/><a:buChar char="&#8226;"/></a:pPr>`
	case r.center:
		ppr = `<a:pPr algn="ctr"><a:buNone/></a:pPr>`
	default:
		ppr = `<a:pPr><a:buNone/></a:pPr>`
	}
	attrs := fmt.Sprintf(`lang="en-US" sz="%d" dirty="0"`, r.size*100)
	if r.bold {
		attrs += ` b="1"`
	}
	props := ""
	if r.color != "" {
		props += `<a:solidFill><a:srgbClr val="` + r.color + `"/></a:solidFill>`
	}
	if font != "" {
		props += `<a:latin typeface="` + esc(font) + `"/>`
	}
	return `<a:p>` + ppr + `<a:r><a:rPr ` + attrs + `>` + props + `</a:rPr><a:t>` + esc(r.text) + `</a:t></a:r></a:p>`
}

func textBox(id int, name string, at box, anchor string, font string, runs []run) string {
	var paras strings.Builder
	for _, r := range runs {
		paras.WriteString(r.paragraph(font))
	}
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, id, esc(name)) +
		`<p:spPr>` + at.xfrm() + `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>` +
		`<p:txBody><a:bodyPr wrap="square" anchor="` + anchor + `"><a:normAutofit/></a:bodyPr><a:lstStyle/>` +
		paras.String() + `</p:txBody></p:sp>`
}

func picture(id int, at box) string {
	return fmt.Sprintf(`<p:pic><p:nvPicPr><p:cNvPr id="%d" name="Picture %d"/>`, id, id) +
		`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>` +
		`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>` +
		`<p:spPr>` + at.xfrm() + `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`
}

func frame(id int, at box, text, fill, color, font string) string {
	return fmt.Sprintf(`<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Image Placeholder"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>`, id) +
		`<p:spPr>` + at.xfrm() + `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom>` +
		`<a:solidFill><a:srgbClr val="` + fill + `"><a:alpha val="20000"/></a:srgbClr></a:solidFill></p:spPr>` +
		`<p:txBody><a:bodyPr wrap="square" anchor="ctr"/><a:lstStyle/>` +
		run{text: text, size: 14, color: color, center: true}.paragraph(font) +
		`</p:txBody></p:sp>`
}

func (k *pkg) slide(s Slide, media string) []byte {
	th := k.p.Theme
	var shapes strings.Builder
	width := SlideWidth - 2*margin

	if s.Kind == KindTitle {
		runs := []run{{text: s.Title, size: 44, bold: true, color: th.Primary, center: true}}
		if s.Subtitle != "" {
			runs = append(runs, run{text: s.Subtitle, size: 24, color: th.Text, center: true})
		}
		shapes.WriteString(textBox(2, "Title", box{margin, 2057400, width, 2743200}, "ctr", th.Heading, runs))
	} else {
		shapes.WriteString(textBox(2, "Title", box{margin, margin, width, titleHeight}, "b", th.Heading,
			[]run{{text: s.Title, size: 36, bold: true, color: th.Primary}}))
		bodyWidth := width
		if s.hasFrame() {
			bodyWidth = width - frameWidth - gutter
		}
		var runs []run
		if s.Subtitle != "" {
			runs = append(runs, run{text: s.Subtitle, size: 22, color: th.Secondary})
		}
		for _, bullet := range s.Bullets {
			runs = append(runs, run{text: bullet, size: 20, color: th.Text, bullet: true})
		}
		if len(runs) > 0 {
			shapes.WriteString(textBox(3, "Body", box{margin, bodyTop, bodyWidth, bodyHeight}, "t", th.Body, runs))
		}
	}

	frameBox := box{SlideWidth - margin - frameWidth, bodyTop, frameWidth, bodyHeight}
	switch {
	case media != "":
		shapes.WriteString(picture(4, frameBox))
	case strings.TrimSpace(s.ImageText) != "" && s.Kind != KindTitle:
		shapes.WriteString(frame(4, frameBox, s.ImageText, orDefault(th.Accent, "888888"), th.Text, th.Body))
	}

	return []byte(xmlHeader +
		`<p:sld ` + nsAll + `><p:cSld>` + background(th.Background) +
		`<p:spTree>` + emptyGroup + shapes.String() + `</p:spTree></p:cSld>` +
		clrMapOverlay + `</p:sld>`)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
