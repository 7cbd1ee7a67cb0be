// Package scriptdraft writes narration scripts for decks through the text
// generation collaborator, falling back to the deck's speaker notes.
package scriptdraft
