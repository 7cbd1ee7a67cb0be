// Package export turns slide records into a downloadable presentation
// package.
//
// Records are normalized into a canonical slide form, mapped onto a pptx
// presentation, and serialized through an ordered list of strategies until
// one yields a plausible package. If the normalized path fails, a titles-only
// package is built directly from the raw records. Decks above the
// memory-constrained threshold carry image placeholders instead of fetched
// images.
package export
