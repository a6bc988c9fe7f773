package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "callcenter/internal/errors"
	"callcenter/internal/search"
	"callcenter/internal/storage"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *storage.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := storage.NewMemoryStore()
	return New(srv.URL, store, WithHTTPClient(srv.Client())), store
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestLoginThenAuthenticatedRequestCarriesBearer(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case EndpointLogin:
			body := decodeBody(t, r)
			require.Equal(t, "admin", body["user"])
			require.Equal(t, "x", body["password"])
			require.Empty(t, r.Header.Get("Authorization"))
			w.Write([]byte(`{"status":"true","token":"abc","username":"admin"}`))
		case EndpointDashboard:
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"data":{"totalTicket":"12","openTicket":4}}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	resp, err := client.Login(context.Background(), Credentials{User: "admin", Password: "x"})
	require.NoError(t, err)
	require.True(t, resp.OK())
	require.Equal(t, "abc", resp.Token)
	require.Equal(t, "admin", resp.Username)

	require.NoError(t, client.SetAuthToken(resp.Token))
	require.True(t, client.IsAuthenticated())

	stats, err := client.GetDashboardStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", gotAuth)
	require.EqualValues(t, 12, stats.Data.TotalTicket)
	require.EqualValues(t, 4, stats.Data.OpenTicket)
}

func TestSaveGrievanceAlwaysSendsQuestionResponses(t *testing.T) {
	var body map[string]any
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, EndpointSave, r.URL.Path)
		body = decodeBody(t, r)
		w.Write([]byte(`{"status":true,"message":"Saved","data":{"pklCrmUserId":"77"}}`))
	})
	require.NoError(t, store.Set(storage.KeyAuthToken, "tok"))

	resp, err := client.SaveGrievance(context.Background(), GrievanceRequest{User: "Asha", Mobile: "9876543210"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, body["questionResponses"])
	require.NotContains(t, body, "userId")
	require.EqualValues(t, 77, resp.TicketNumber())
}

func TestAuthenticatedRequestWithoutTokenMakesNoCall(t *testing.T) {
	var hits int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	_, err := client.GetDashboardStats(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.IsUnauthenticated(err))
	require.Equal(t, "No authentication token found", err.Error())
	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestRequestStatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    apperrors.Kind
		message string
	}{
		{"401 json", 401, `{"message":"bad token"}`, apperrors.KindUnauthorized, "Unauthorized: Invalid credentials"},
		{"401 text", 401, `Unauthorized`, apperrors.KindInvalidResponse, "Invalid response format"},
		{"401 html", 401, `<html>login required</html>`, apperrors.KindInvalidResponse, "Invalid response format"},
		{"401 empty", 401, ``, apperrors.KindInvalidResponse, "Invalid response format"},
		{"500 html", 500, `<html>oops</html>`, apperrors.KindInvalidResponse, "Invalid response format"},
		{"403", 403, `{}`, apperrors.KindForbidden, "Forbidden: Access denied"},
		{"404", 404, `{}`, apperrors.KindNotFound, "Not found: The requested resource was not found"},
		{"500", 500, `{}`, apperrors.KindServerError, "Server error: Please try again later"},
		{"502 json", 502, `{}`, apperrors.KindHTTPError, "HTTP error! status: 502"},
		{"502 html", 502, `<html>bad gateway</html>`, apperrors.KindInvalidResponse, "Invalid response format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			require.NoError(t, store.Set(storage.KeyAuthToken, "tok"))

			_, err := client.GetDashboardStats(context.Background())
			require.Error(t, err)
			require.Equal(t, tt.kind, apperrors.KindOf(err))
			require.Equal(t, tt.message, err.Error())
		})
	}
}

func TestUnauthorizedDoesNotClearToken(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"token expired"}`)
	})
	require.NoError(t, store.Set(storage.KeyAuthToken, "tok"))

	_, err := client.GetDashboardStats(context.Background())
	require.True(t, apperrors.IsUnauthorized(err))
	require.True(t, client.IsAuthenticated())
}

func TestNonJSONUnauthorizedStillNeedsLogin(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `<html>session expired</html>`)
	})
	require.NoError(t, store.Set(storage.KeyAuthToken, "tok"))

	_, err := client.GetDashboardStats(context.Background())
	require.EqualError(t, err, "Invalid response format")
	require.False(t, apperrors.IsUnauthorized(err))
	require.Equal(t, 401, apperrors.StatusOf(err))
	require.True(t, apperrors.NeedsLogin(err))
	require.True(t, client.IsAuthenticated())
}

func TestRequestNetworkFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := New("http://"+addr, storage.NewMemoryStore())
	_, err = client.Login(context.Background(), Credentials{User: "a", Password: "b"})
	require.Error(t, err)
	require.True(t, apperrors.IsNetwork(err))
	require.Equal(t, "Network error: Please check your internet connection", err.Error())
}

func TestRequestCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetMasterData(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestImplicitSuccessOnNonJSON2xx(t *testing.T) {
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "OK")
	})
	require.NoError(t, store.Set(storage.KeyAuthToken, "tok"))

	resp, err := client.SendChatReply(context.Background(), ReplyRequest{UserID: 1, ReplyChat: "hi"})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.False(t, resp.OK())
	require.Equal(t, "Request successful", resp.Message)
}

func TestGetGrievancesBody(t *testing.T) {
	var body map[string]any
	client, store := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = decodeBody(t, r)
		w.Write([]byte(`{"data":[{"pklCrmUserId":5,"vsTicketId":"GRV5","vsMobile":9876543210,"bIsUnanswered":1}],"count":"31"}`))
	})
	require.NoError(t, store.Set(storage.KeyAuthToken, "tok"))

	resp, err := client.GetGrievances(context.Background(), ListQuery{
		LoginID: 2892,
		Filters: search.Filters{Status: "Open", EntryType: "incoming"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"loginId":     float64(2892),
		"currentPage": float64(1),
		"pageSize":    float64(10),
		"status":      "Open",
		"entryType":   "incoming",
	}, body)

	require.EqualValues(t, 31, resp.Count)
	require.Len(t, resp.Data, 1)
	require.EqualValues(t, 5, resp.Data[0].ID)
	require.Equal(t, FlexString("9876543210"), resp.Data[0].Mobile)
	require.True(t, bool(resp.Data[0].IsUnanswered))
}

func TestRequestHeaders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Write([]byte(`{"status":"true","message":"Fetched Successfully!","data":{"role":[{"pklUserRoleId":"1","vsRoleName":"Candidate"}]}}`))
	})

	resp, err := client.GetMasterData(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Fetched Successfully!", resp.Message)
	require.Equal(t, []Role{{ID: 1, Name: "Candidate"}}, resp.Data.Role)
}

func TestFlagDecoding(t *testing.T) {
	tests := map[string]bool{`true`: true, `"true"`: true, `1`: true, `"1"`: true, `false`: false, `"false"`: false, `0`: false, `null`: false}
	for in, want := range tests {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(in), &f), in)
		require.Equal(t, want, bool(f), in)
	}
}

func TestCandidateResolvedID(t *testing.T) {
	var cands []Candidate
	require.NoError(t, json.Unmarshal([]byte(`[{"Id":3,"candidateName":"A"},{"TCId":"9","name":"B"},{"id":4}]`), &cands))
	require.EqualValues(t, 3, cands[0].ResolvedID())
	require.Equal(t, "A", cands[0].DisplayName())
	require.EqualValues(t, 9, cands[1].ResolvedID())
	require.Equal(t, "B", cands[1].DisplayName())
	require.EqualValues(t, 4, cands[2].ResolvedID())
}

func TestQuestionKind(t *testing.T) {
	require.Equal(t, QuestionYesNo, Question{Type: "1"}.Kind())
	require.Equal(t, QuestionRating, Question{Type: "2"}.Kind())
	require.Equal(t, QuestionText, Question{Type: "3"}.Kind())
}
