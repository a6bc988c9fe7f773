package grievance

import (
	"context"
	"errors"
	"log"
	"time"

	"callcenter/internal/api"
	"callcenter/internal/dates"
	apperrors "callcenter/internal/errors"
)

// Defaults for an unanswered feedback call.
const (
	UnansweredName        = "Unknown"
	UnansweredMobile      = "0000000000"
	UnansweredQueryType   = "Unanswered"
	UnansweredDescription = "No response provided - marked as unanswered"
	UnansweredAddress     = "Not provided"
)

// ErrNoTicketID is returned when a save succeeded but the backend sent no id.
var ErrNoTicketID = errors.New("Grievance created but no ticket id was returned")

// BuildIncoming builds the save request for an incoming grievance. The
// entry time is always now.
func BuildIncoming(f *Form, m *Master, now time.Time) (api.GrievanceRequest, error) {
	if errs := f.Validate(); len(errs) > 0 {
		return api.GrievanceRequest{}, errs
	}
	sel, err := m.Resolve(f.Role, f.QueryType, f.District)
	if err != nil {
		return api.GrievanceRequest{}, err
	}

	return api.GrievanceRequest{
		User:             f.Name,
		Mobile:           f.Mobile,
		QueryTypeID:      sel.QueryTypeID,
		EntryDateTime:    dates.FormatTime(now),
		QueryDescription: f.Description,
		RoleID:           sel.RoleID,
		EntryType:        EntryIncoming,
		DistrictID:       sel.DistrictID,
		Address:          f.Address,
		UserID:           f.UserID(),
	}, nil
}

// BuildOutgoing builds the save request for outgoing feedback with its
// question answers. The form's DateTime is used when set.
func BuildOutgoing(f *Form, m *Master, questions []api.Question, r Responses, now time.Time) (api.GrievanceRequest, error) {
	errs := f.Validate()
	errs.Merge(r.Validate(questions))
	if len(errs) > 0 {
		return api.GrievanceRequest{}, errs
	}
	sel, err := m.Resolve(f.Role, f.QueryType, f.District)
	if err != nil {
		return api.GrievanceRequest{}, err
	}

	entry := dates.FormatTime(now)
	if f.DateTime != "" {
		if entry, err = dates.FormatForSubmission(f.DateTime); err != nil {
			return api.GrievanceRequest{}, apperrors.ValidationErrors{"dateTime": "Date and time is invalid."}
		}
	}

	return api.GrievanceRequest{
		User:              f.Name,
		Mobile:            f.Mobile,
		QueryTypeID:       sel.QueryTypeID,
		EntryDateTime:     entry,
		QueryDescription:  f.Description,
		RoleID:            sel.RoleID,
		EntryType:         EntryOutgoing,
		DistrictID:        sel.DistrictID,
		Address:           f.Address,
		UserID:            f.UserID(),
		QuestionResponses: r.Payload(),
	}, nil
}

// BuildUnanswered builds the request for a feedback call nobody answered.
// Nothing is validated: missing fields get placeholders and unknown role or
// district names fall back to the first master entry.
func BuildUnanswered(f *Form, m *Master, now time.Time) api.UnansweredRequest {
	roleID, ok := m.ResolveRole(f.Role)
	if !ok {
		roleID = 1
		if len(m.Roles) > 0 {
			roleID = int64(m.Roles[0].ID)
		}
	}
	districtID, ok := m.ResolveDistrict(f.District)
	if !ok {
		districtID = 1
		if len(m.Districts) > 0 {
			districtID = int64(m.Districts[0].ID)
		}
	}

	return api.UnansweredRequest{
		UserRoleID:        roleID,
		UserName:          orDefault(f.Name, UnansweredName),
		Mobile:            orDefault(f.Mobile, UnansweredMobile),
		QueryType:         UnansweredQueryType,
		QueryDescription:  UnansweredDescription,
		EntryDateTime:     now.UTC().Format("2006-01-02T15:04:05.000Z"),
		EntryType:         EntryOutgoing,
		DistrictID:        districtID,
		Address:           orDefault(f.Address, UnansweredAddress),
		QuestionResponses: map[string]api.QuestionResponse{},
		Unanswered:        1,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Submit saves req and returns the new ticket's internal id.
func Submit(ctx context.Context, client *api.Client, req api.GrievanceRequest) (int64, error) {
	resp, err := client.SaveGrievance(ctx, req)
	if err != nil {
		return 0, err
	}
	return saved(resp, "Failed to submit grievance.")
}

// SubmitUnanswered saves an unanswered feedback call.
func SubmitUnanswered(ctx context.Context, client *api.Client, req api.UnansweredRequest) (int64, error) {
	resp, err := client.SaveUnanswered(ctx, req)
	if err != nil {
		return 0, err
	}
	return saved(resp, "Failed to submit unanswered feedback.")
}

func saved(resp *api.SaveResponse, fallback string) (int64, error) {
	if !resp.OK() {
		return 0, apperrors.NewAPIError("save", resp.Message, fallback)
	}
	id := resp.TicketNumber()
	if id == 0 {
		return 0, ErrNoTicketID
	}
	log.Printf("✓ Saved ticket %d: %s\n", id, resp.Message)
	return id, nil
}
