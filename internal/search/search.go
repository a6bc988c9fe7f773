// Package search turns the single free-text search box into list filters.
package search

import (
	"strings"
	"unicode"
)

// Kind is the field a search string was routed to.
type Kind int

const (
	KindNone Kind = iota
	KindMobile
	KindTicket
	KindName
	KindAll
)

func (k Kind) String() string {
	switch k {
	case KindMobile:
		return "mobile"
	case KindTicket:
		return "ticket"
	case KindName:
		return "name"
	case KindAll:
		return "all"
	default:
		return "none"
	}
}

// Filters are the optional list-query filters. Empty strings are not sent.
type Filters struct {
	TicketID     string `json:"ticketId,omitempty"`
	UserName     string `json:"userName,omitempty"`
	UserMobile   string `json:"userMobile,omitempty"`
	UserRole     string `json:"userRole,omitempty"`
	QueryType    string `json:"queryType,omitempty"`
	Status       string `json:"status,omitempty"`
	IsUnanswered string `json:"isUnanswered,omitempty"`
	District     string `json:"district,omitempty"`
	EntryType    string `json:"entryType,omitempty"`
}

// Active reports whether any filter is set.
func (f Filters) Active() bool {
	return f != Filters{}
}

// Map returns the non-empty filters keyed by their wire names.
func (f Filters) Map() map[string]string {
	out := make(map[string]string)
	add := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	add("ticketId", f.TicketID)
	add("userName", f.UserName)
	add("userMobile", f.UserMobile)
	add("userRole", f.UserRole)
	add("queryType", f.QueryType)
	add("status", f.Status)
	add("isUnanswered", f.IsUnanswered)
	add("district", f.District)
	add("entryType", f.EntryType)
	return out
}

// Match is the result of classifying a search string.
type Match struct {
	Kind       Kind
	TicketID   string
	UserName   string
	UserMobile string
}

// Classify routes input to the filter it most likely targets.
//
// Rules, first match wins:
//   - digits only → mobile
//   - at least one letter and one digit → ticket id
//   - letters and whitespace only → name
//   - anything else → all three fields
func Classify(input string) Match {
	term := strings.TrimSpace(input)
	if term == "" {
		return Match{Kind: KindNone}
	}

	var digits, letters, other int
	for _, r := range term {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case isASCIILetter(r):
			letters++
		case unicode.IsSpace(r):
		default:
			other++
		}
	}

	switch {
	case digits == len(term):
		return Match{Kind: KindMobile, UserMobile: term}
	case letters > 0 && digits > 0:
		return Match{Kind: KindTicket, TicketID: term}
	case digits == 0 && other == 0:
		return Match{Kind: KindName, UserName: term}
	default:
		return Match{Kind: KindAll, TicketID: term, UserName: term, UserMobile: term}
	}
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// Apply replaces the search fields of f with the classification of input.
// Every other filter is left as it was.
func Apply(f Filters, input string) Filters {
	m := Classify(input)
	f.TicketID = m.TicketID
	f.UserName = m.UserName
	f.UserMobile = m.UserMobile
	return f
}

// Clear empties the search fields of f.
func Clear(f Filters) Filters {
	f.TicketID = ""
	f.UserName = ""
	f.UserMobile = ""
	return f
}
