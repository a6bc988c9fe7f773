package grievance

import (
	"context"
	"errors"
	"strings"

	"callcenter/internal/api"
	apperrors "callcenter/internal/errors"
)

// Entry types as sent to the backend.
const (
	EntryIncoming = "incoming"
	EntryOutgoing = "outgoing"
)

// Form is the intake form shared by incoming grievances and outgoing
// feedback. Role, QueryType and District hold master-data names.
type Form struct {
	Role        string
	Name        string
	Mobile      string
	QueryType   string
	Description string
	District    string
	Address     string
	EntryType   string
	// DateTime is an optional date-time for outgoing feedback; empty means now.
	DateTime string
	// Candidate is the registered person the form was filled from, if any.
	Candidate *api.Candidate
}

// Validate checks the required fields. Description is optional.
func (f *Form) Validate() apperrors.ValidationErrors {
	errs := apperrors.ValidationErrors{}
	if strings.TrimSpace(f.Role) == "" {
		errs["role"] = "Role is required."
	}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Name is required."
	}
	switch {
	case f.Mobile == "":
		errs["mobile"] = "Mobile number is required."
	case len(f.Mobile) != 10 || strings.Trim(f.Mobile, "0123456789") != "":
		errs["mobile"] = "Mobile number must be 10 digits."
	}
	if strings.TrimSpace(f.QueryType) == "" {
		errs["queryType"] = "Query type is required."
	}
	if strings.TrimSpace(f.District) == "" {
		errs["district"] = "District is required."
	}
	if strings.TrimSpace(f.Address) == "" {
		errs["address"] = "Address is required."
	}
	return errs
}

// ApplyCandidate fills the contact fields from a search hit.
func (f *Form) ApplyCandidate(c api.Candidate) {
	f.Candidate = &c
	f.Name = c.DisplayName()
	f.Mobile = string(c.Mobile)
	f.District = c.District
	f.Address = c.Address
}

// ClearCandidate drops the selected candidate and the fields it filled.
func (f *Form) ClearCandidate() {
	f.Candidate = nil
	f.Name = ""
	f.Mobile = ""
	f.District = ""
	f.Address = ""
}

// UserID returns the selected candidate's id, or nil.
func (f *Form) UserID() *int64 {
	if f.Candidate == nil {
		return nil
	}
	id := f.Candidate.ResolvedID()
	return &id
}

// Search kinds for candidate lookup. SearchByID is only offered for the
// Candidate role.
const (
	SearchByName   = "name"
	SearchByMobile = "mobile"
	SearchByID     = "id"
)

// ErrEmptySearch is returned for a blank candidate search.
var ErrEmptySearch = errors.New("Please enter search text")

var userTypes = map[string]string{
	"Candidate":        "Candidate",
	"Training Partner": "TrainingPartner",
	"Training Center":  "TrainingCenter",
	"Trainer":          "Trainer",
}

// RequiresSearch reports whether the role's contact details come from a
// registry search rather than free entry.
func RequiresSearch(role string) bool {
	_, ok := userTypes[role]
	return ok
}

// UserType maps a role name to the user-data search type. Roles without a
// registry search map to Candidate.
func UserType(role string) string {
	if t, ok := userTypes[role]; ok {
		return t
	}
	return "Candidate"
}

// SearchKinds lists the search kinds offered for role.
func SearchKinds(role string) []string {
	if role == "Candidate" {
		return []string{SearchByName, SearchByMobile, SearchByID}
	}
	return []string{SearchByName, SearchByMobile}
}

// SearchCandidates looks up registered people for role.
func SearchCandidates(ctx context.Context, client *api.Client, role, kind, text string) ([]api.Candidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptySearch
	}
	if kind == "" {
		kind = SearchByName
	}

	resp, err := client.GetUserData(ctx, api.UserSearch{
		UserType:   UserType(role),
		QueryType:  kind,
		SearchText: text,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
