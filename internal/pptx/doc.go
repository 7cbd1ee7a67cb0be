// Package pptx writes PresentationML packages: the zip-of-XML slide deck
// container opened by PowerPoint, Keynote, and LibreOffice Impress.
//
// The writer covers the subset the exporter needs: one master with a blank
// layout, a theme built from template colors, text boxes for titles and
// bullets, embedded raster pictures, and speaker notes.
package pptx
