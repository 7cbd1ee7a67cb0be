// Package render draws slides onto a fixed 1920x1080 raster surface.
//
// A slide's template archetype decides background and heading placement; the
// body region shows statistics, a chart, a quote, an image, or bullets,
// whichever the slide carries first in that order. Drawing failures degrade
// to a title-only placeholder and upload failures degrade to a PNG data URI,
// so one bad slide never stops a deck.
package render
