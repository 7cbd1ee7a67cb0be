package render

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

type fontStyle int

const (
	styleRegular fontStyle = iota
	styleBold
	styleItalic
)

var (
	fontsOnce sync.Once
	fonts     map[fontStyle]*truetype.Font
	fontsErr  error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		sources := map[fontStyle][]byte{
			styleRegular: goregular.TTF,
			styleBold:    gobold.TTF,
			styleItalic:  goitalic.TTF,
		}
		fonts = make(map[fontStyle]*truetype.Font, len(sources))
		for style, ttf := range sources {
			parsed, err := truetype.Parse(ttf)
			if err != nil {
				fontsErr = fmt.Errorf("parse embedded font: %w", err)
				return
			}
			fonts[style] = parsed
		}
	})
	return fontsErr
}

// faceSet caches faces for one drawing pass. Faces hold glyph caches and are
// not safe for concurrent use, so each slide draw builds its own set.
type faceSet struct {
	faces map[faceKey]font.Face
}

type faceKey struct {
	style fontStyle
	size  float64
}

func newFaceSet() (*faceSet, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	return &faceSet{faces: make(map[faceKey]font.Face)}, nil
}

func (f *faceSet) face(style fontStyle, size float64) font.Face {
	key := faceKey{style: style, size: size}
	if face, ok := f.faces[key]; ok {
		return face
	}
	face := truetype.NewFace(fonts[style], &truetype.Options{Size: size, Hinting: font.HintingFull})
	f.faces[key] = face
	return face
}

func (f *faceSet) Close() {
	for _, face := range f.faces {
		_ = face.Close()
	}
}
