package cards

import "strings"

// Entry is a card positioned in a CardSet.
type Entry struct {
	Index  int
	Indent int
	Card   Card
}

// Set is the ordered output of decoding one payload.
type Set struct {
	Entries []Entry
	indent  int
}

// Add appends c at the current indent.
func (s *Set) Add(c Card) {
	s.Entries = append(s.Entries, Entry{Index: len(s.Entries), Indent: s.indent, Card: c})
}

// Nest runs fn with the indent increased by one.
func (s *Set) Nest(fn func() error) error {
	s.indent++
	defer func() { s.indent-- }()
	return fn()
}

// Append adds every entry of o, shifting its indents by the current indent.
func (s *Set) Append(o Set) {
	for _, e := range o.Entries {
		s.Entries = append(s.Entries, Entry{Index: len(s.Entries), Indent: s.indent + e.Indent, Card: e.Card})
	}
}

// Len is the number of cards.
func (s Set) Len() int { return len(s.Entries) }

// Cards returns the cards without positions.
func (s Set) Cards() []Card {
	out := make([]Card, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Card
	}
	return out
}

// HasError reports whether any card is an Error.
func (s Set) HasError() bool {
	for _, e := range s.Entries {
		if _, ok := e.Card.(Error); ok {
			return true
		}
	}
	return false
}

// String renders one card per line, indented two spaces per level.
func (s Set) String() string {
	var sb strings.Builder
	for _, e := range s.Entries {
		sb.WriteString(strings.Repeat("  ", e.Indent))
		sb.WriteString(e.Card.Text())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Of builds a flat Set from cards.
func Of(cs ...Card) Set {
	var s Set
	for _, c := range cs {
		s.Add(c)
	}
	return s
}
