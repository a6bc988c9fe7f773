package grievance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"callcenter/internal/api"
	apperrors "callcenter/internal/errors"
	"callcenter/internal/storage"
)

func testClient(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(storage.KeyAuthToken, "tok"))
	return api.New(srv.URL, store, api.WithHTTPClient(srv.Client()))
}

func fallback(t *testing.T) *Master {
	t.Helper()
	m, err := FallbackMaster()
	require.NoError(t, err)
	return m
}

func validForm() *Form {
	return &Form{
		Role:      "Public",
		Name:      "Asha Bora",
		Mobile:    "9876543210",
		QueryType: "Placement",
		District:  "Kamrup Metropolitan",
		Address:   "Guwahati",
	}
}

func TestFallbackMaster(t *testing.T) {
	m := fallback(t)
	require.Len(t, m.Roles, 5)
	require.Len(t, m.QueryTypes, 6)
	require.Len(t, m.Districts, 35)

	id, ok := m.ResolveDistrict("Bajali")
	require.True(t, ok)
	require.EqualValues(t, 1132, id)

	id, ok = m.ResolveDistrict("Karbi Anglong - West")
	require.True(t, ok)
	require.EqualValues(t, 1126, id)

	id, ok = m.ResolveQueryType("Others")
	require.True(t, ok)
	require.EqualValues(t, 6, id)
}

func TestResolve(t *testing.T) {
	m := fallback(t)

	sel, err := m.Resolve("Trainer", "Course", "Udalguri")
	require.NoError(t, err)
	require.Equal(t, Selection{RoleID: 3, QueryTypeID: 2, DistrictID: 1129}, sel)

	_, err = m.Resolve("Trainer", "Course", "Atlantis")
	require.ErrorIs(t, err, ErrInvalidSelection)
	require.Equal(t, "Invalid role, query type, or district selected.", err.Error())
}

func TestLoadMaster(t *testing.T) {
	t.Run("fetched", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":true,"message":"Fetched Successfully!","data":{"role":[{"pklUserRoleId":9,"vsRoleName":"Auditor"}],"queryType":[],"district":[]}}`))
		})
		m, usedFallback, err := LoadMaster(context.Background(), client)
		require.NoError(t, err)
		require.False(t, usedFallback)
		require.Equal(t, []string{"Auditor"}, m.RoleNames())
	})

	t.Run("unexpected message", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":true,"message":"Something else","data":{"role":[]}}`))
		})
		m, usedFallback, err := LoadMaster(context.Background(), client)
		require.NoError(t, err)
		require.True(t, usedFallback)
		require.Len(t, m.Districts, 35)
	})

	t.Run("server error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		m, usedFallback, err := LoadMaster(context.Background(), client)
		require.NoError(t, err)
		require.True(t, usedFallback)
		require.Len(t, m.Roles, 5)
	})
}

func TestFormValidate(t *testing.T) {
	require.Empty(t, validForm().Validate())

	errs := (&Form{}).Validate()
	require.Equal(t, apperrors.ValidationErrors{
		"role":      "Role is required.",
		"name":      "Name is required.",
		"mobile":    "Mobile number is required.",
		"queryType": "Query type is required.",
		"district":  "District is required.",
		"address":   "Address is required.",
	}, errs)

	for _, mobile := range []string{"12345", "98765432101", "98765x3210"} {
		f := validForm()
		f.Mobile = mobile
		require.Equal(t, apperrors.ValidationErrors{"mobile": "Mobile number must be 10 digits."}, f.Validate(), mobile)
	}
}

func TestApplyAndClearCandidate(t *testing.T) {
	f := &Form{Role: "Candidate"}
	f.ApplyCandidate(api.Candidate{CandidateID: 42, CandidateName: "Rupam", Mobile: "9000000001", District: "Nagaon", Address: "Ward 3"})

	require.Equal(t, "Rupam", f.Name)
	require.Equal(t, "9000000001", f.Mobile)
	require.Equal(t, "Nagaon", f.District)
	require.Equal(t, "Ward 3", f.Address)
	require.NotNil(t, f.UserID())
	require.EqualValues(t, 42, *f.UserID())

	f.ClearCandidate()
	require.Nil(t, f.UserID())
	require.Equal(t, &Form{Role: "Candidate"}, f)
}

func TestRoleSearch(t *testing.T) {
	require.True(t, RequiresSearch("Training Partner"))
	require.False(t, RequiresSearch("Public"))
	require.Equal(t, "TrainingCenter", UserType("Training Center"))
	require.Equal(t, "Candidate", UserType("Public"))
	require.Equal(t, []string{"name", "mobile", "id"}, SearchKinds("Candidate"))
	require.Equal(t, []string{"name", "mobile"}, SearchKinds("Trainer"))
}

func TestSearchCandidates(t *testing.T) {
	var body api.UserSearch
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"data":[{"TCId":"17","name":"Skill Hub","mobile":"9999999999"}]}`))
	})

	_, err := SearchCandidates(context.Background(), client, "Trainer", "name", "   ")
	require.ErrorIs(t, err, ErrEmptySearch)

	got, err := SearchCandidates(context.Background(), client, "Training Center", "", " hub ")
	require.NoError(t, err)
	require.Equal(t, api.UserSearch{UserType: "TrainingCenter", QueryType: "name", SearchText: "hub"}, body)
	require.Len(t, got, 1)
	require.EqualValues(t, 17, got[0].ResolvedID())
}

func TestResponses(t *testing.T) {
	questions := []api.Question{
		{ID: 11, Text: "Did you get a job?", Type: "1"},
		{ID: 12, Text: "Rate the course", Type: "2"},
		{ID: 13, Text: "Anything else?", Type: "3"},
	}
	r := NewResponses(questions)
	require.Len(t, r, 3)

	require.Equal(t, apperrors.ValidationErrors{
		"question_11": "Question 1 is required.",
		"question_12": "Question 2 is required.",
		"question_13": "Question 3 is required.",
	}, r.Validate(questions))

	r[11] = Answer{Response: "Yes", Comment: "Placed in Guwahati"}
	r[12] = Answer{Response: "7"}
	errs := r.Validate(questions)
	require.Contains(t, errs, "question_12")
	require.Contains(t, errs, "question_13")
	require.NotContains(t, errs, "question_11")

	require.Equal(t, map[string]api.QuestionResponse{
		"11": {QuestionID: 11, Response: "Yes", ResponseComment: "Placed in Guwahati"},
		"12": {QuestionID: 12, Response: "7"},
	}, r.Payload())
}

func TestValidateAnswer(t *testing.T) {
	yesno := api.Question{Type: "1"}
	rating := api.Question{Type: "2"}
	text := api.Question{Type: "3"}

	require.NoError(t, ValidateAnswer(yesno, "No"))
	require.Error(t, ValidateAnswer(yesno, "maybe"))
	require.NoError(t, ValidateAnswer(rating, "5"))
	require.Error(t, ValidateAnswer(rating, "0"))
	require.NoError(t, ValidateAnswer(text, "anything"))
}

func TestBuildIncoming(t *testing.T) {
	now := time.Date(2025, 10, 23, 19, 34, 0, 0, time.Local)
	f := validForm()
	f.DateTime = "2020-01-01T10:00"

	req, err := BuildIncoming(f, fallback(t), now)
	require.NoError(t, err)
	require.Equal(t, api.GrievanceRequest{
		User:          "Asha Bora",
		Mobile:        "9876543210",
		QueryTypeID:   4,
		EntryDateTime: "23-10-2025 07:34:00 pm",
		RoleID:        5,
		EntryType:     "incoming",
		DistrictID:    1124,
		Address:       "Guwahati",
	}, req)

	_, err = BuildIncoming(&Form{}, fallback(t), now)
	var verrs apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 6)
}

func TestBuildOutgoing(t *testing.T) {
	questions := []api.Question{{ID: 11, Type: "1"}}
	r := NewResponses(questions)
	f := validForm()
	f.DateTime = "2025-08-04T17:00"

	_, err := BuildOutgoing(f, fallback(t), questions, r, time.Now())
	var verrs apperrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "Question 1 is required.", verrs["question_11"])

	r[11] = Answer{Response: "Yes"}
	req, err := BuildOutgoing(f, fallback(t), questions, r, time.Now())
	require.NoError(t, err)
	require.Equal(t, "04-08-2025 05:00:00 pm", req.EntryDateTime)
	require.Equal(t, "outgoing", req.EntryType)
	require.Len(t, req.QuestionResponses, 1)
}

func TestBuildUnanswered(t *testing.T) {
	now := time.Date(2025, 8, 4, 11, 30, 0, 0, time.UTC)
	req := BuildUnanswered(&Form{}, fallback(t), now)

	require.EqualValues(t, 1, req.UserRoleID)
	require.EqualValues(t, 1132, req.DistrictID)
	require.Equal(t, "Unknown", req.UserName)
	require.Equal(t, "0000000000", req.Mobile)
	require.Equal(t, "Unanswered", req.QueryType)
	require.Equal(t, "No response provided - marked as unanswered", req.QueryDescription)
	require.Equal(t, "Not provided", req.Address)
	require.Equal(t, "outgoing", req.EntryType)
	require.Equal(t, "2025-08-04T11:30:00.000Z", req.EntryDateTime)
	require.Equal(t, 1, req.Unanswered)
	require.Empty(t, req.QuestionResponses)
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		id      int64
		message string
	}{
		{"saved", `{"status":"true","message":"Saved","data":{"pklCrmUserId":55}}`, 55, ""},
		{"rejected with message", `{"status":"false","message":"Duplicate entry"}`, 0, "Duplicate entry"},
		{"rejected without message", `{"status":false}`, 0, "Failed to submit grievance."},
		{"no id", `{"status":true,"data":{}}`, 0, "Grievance created but no ticket id was returned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			id, err := Submit(context.Background(), client, api.GrievanceRequest{User: "x"})
			if tt.message == "" {
				require.NoError(t, err)
				require.Equal(t, tt.id, id)
				return
			}
			require.EqualError(t, err, tt.message)
		})
	}
}
