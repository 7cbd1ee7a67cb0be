package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ContentType is the media type of a .pptx package.
const ContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// Slide size in EMU (13.333in x 7.5in, 16:9).
const (
	SlideWidth  = 12192000
	SlideHeight = 6858000
)

// ErrNoSlides is returned when a presentation has nothing to write.
var ErrNoSlides = errors.New("presentation has no slides")

// Kind selects the slide arrangement.
type Kind string

const (
	KindTitle   Kind = "title"
	KindContent Kind = "content"
)

// Image is an embedded raster.
type Image struct {
	Data []byte
	// Ext is "png" or "jpeg".
	Ext string
}

// Slide is one page of the package.
type Slide struct {
	Kind     Kind
	Title    string
	Subtitle string
	Bullets  []string
	Notes    string
	Image    *Image
	// ImageText fills the picture frame when no image is embedded.
	ImageText string
}

func (s Slide) hasPicture() bool {
	return s.Image != nil && len(s.Image.Data) > 0
}

func (s Slide) hasFrame() bool {
	return s.hasPicture() || strings.TrimSpace(s.ImageText) != ""
}

// Theme carries hex colors (no leading #) and font faces.
type Theme struct {
	Name       string
	Primary    string
	Secondary  string
	Accent     string
	Background string
	Text       string
	Heading    string
	Body       string
}

// Presentation is a complete deck ready to serialize.
type Presentation struct {
	Title   string
	Author  string
	Created time.Time
	Theme   Theme
	Slides  []Slide
}

// Part is one file inside the package.
type Part struct {
	Name string
	Data []byte
}

// Write streams the package to w.
func Write(w io.Writer, p Presentation) error {
	zw := zip.NewWriter(w)
	if err := p.each(func(name string, data []byte) error {
		return writeEntry(zw, name, data, p.Created)
	}); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Parts renders every package part in memory, in package order.
func (p Presentation) Parts() ([]Part, error) {
	var parts []Part
	err := p.each(func(name string, data []byte) error {
		parts = append(parts, Part{Name: name, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// Pack zips pre-rendered parts.
func Pack(parts []Part, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		if err := writeEntry(zw, part.Name, part.Data, modified); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close package: %w", err)
	}
	return buf.Bytes(), nil
}

// Base64 returns the package as standard base64 text.
func (p Presentation) Base64() (string, error) {
	parts, err := p.Parts()
	if err != nil {
		return "", err
	}
	data, err := Pack(parts, p.Created)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	if !modified.IsZero() {
		header.Modified = modified
	}
	fw, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// each renders parts in the order consumers expect: content types first.
func (p Presentation) each(emit func(name string, data []byte) error) error {
	if len(p.Slides) == 0 {
		return ErrNoSlides
	}
	pkg := newPackage(p)
	if err := emit("[Content_Types].xml", pkg.contentTypes()); err != nil {
		return err
	}
	fixed := []Part{
		{"_rels/.rels", rootRels()},
		{"docProps/core.xml", pkg.core()},
		{"docProps/app.xml", pkg.app()},
		{"ppt/presentation.xml", pkg.presentation()},
		{"ppt/_rels/presentation.xml.rels", pkg.presentationRels()},
		{"ppt/slideMasters/slideMaster1.xml", pkg.master()},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", masterRels()},
		{"ppt/slideLayouts/slideLayout1.xml", layout()},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", layoutRels()},
		{"ppt/theme/theme1.xml", theme(p.Theme, "Lectern")},
		{"ppt/theme/theme2.xml", theme(p.Theme, "Lectern Notes")},
		{"ppt/notesMasters/notesMaster1.xml", notesMaster()},
		{"ppt/notesMasters/_rels/notesMaster1.xml.rels", notesMasterRels()},
	}
	for _, part := range fixed {
		if err := emit(part.Name, part.Data); err != nil {
			return err
		}
	}
	for i, slide := range p.Slides {
		n := i + 1
		media := pkg.media[n]
		if err := emit(fmt.Sprintf("ppt/slides/slide%d.xml", n), pkg.slide(slide, media)); err != nil {
			return err
		}
		if err := emit(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), slideRels(n, media, pkg.hasNotes(slide))); err != nil {
			return err
		}
		if media != "" {
			if err := emit("ppt/media/"+media, slide.Image.Data); err != nil {
				return err
			}
		}
		if pkg.hasNotes(slide) {
			if err := emit(fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n), notesSlide(slide.Notes)); err != nil {
				return err
			}
			if err := emit(fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", n), notesSlideRels(n)); err != nil {
				return err
			}
		}
	}
	return nil
}
