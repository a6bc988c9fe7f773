package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"callcenter/internal/api"
)

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// backend is a stub call center API.
type backend struct {
	mu    sync.Mutex
	saved []map[string]any
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	authed := r.Header.Get("Authorization") == "Bearer tok"
	switch r.URL.Path {
	case api.EndpointLogin:
		if body["password"] != "secret" {
			w.Write([]byte(`{"status":false,"message":"Invalid password"}`))
			return
		}
		w.Write([]byte(`{"status":true,"token":"tok","username":"agent7"}`))
	case api.EndpointList:
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"status":true,"count":1,"data":[{"pklCrmUserId":41,"vsTicketId":"GRV-41","vsUserName":"Asha","vsMobile":9876543210,"vsStatus":"Open","vsEntryType":"incoming"}]}`))
	case api.EndpointSave:
		if !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.saved = append(b.saved, body)
		w.Write([]byte(`{"status":true,"message":"Saved","data":{"pklCrmUserId":77}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newBackend(t *testing.T) (*backend, []string) {
	t.Helper()
	be := &backend{}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)
	state := filepath.Join(t.TempDir(), "state.db")
	return be, []string{"--base-url", srv.URL, "--state", state}
}

func run(t *testing.T, common []string, args ...string) (string, error) {
	t.Helper()
	return executeCommand(NewRootCmd("test"), append(args, common...)...)
}

func TestRootCommandVersion(t *testing.T) {
	output, err := executeCommand(NewRootCmd("test"), "--version")
	require.NoError(t, err)
	require.Contains(t, output, "callcenter version test")
}

func TestRootCommandHelp(t *testing.T) {
	output, err := executeCommand(NewRootCmd("test"))
	require.NoError(t, err)
	require.Contains(t, output, "grievances")
	require.Contains(t, output, "submit")
}

func TestLoginWhoamiLogout(t *testing.T) {
	_, common := newBackend(t)

	output, err := run(t, common, "whoami")
	require.Error(t, err)
	require.Contains(t, output, "login")

	output, err = run(t, common, "login", "-u", "agent7", "-p", "wrong")
	require.Error(t, err)
	require.Contains(t, output, "Invalid password")

	output, err = run(t, common, "login", "-u", "agent7", "-p", "secret")
	require.NoError(t, err)
	require.Contains(t, output, "Logged in as agent7")

	output, err = run(t, common, "whoami")
	require.NoError(t, err)
	require.Equal(t, "agent7\n", output)

	_, err = run(t, common, "logout")
	require.NoError(t, err)

	_, err = run(t, common, "whoami")
	require.Error(t, err)
}

func TestGrievancesJSON(t *testing.T) {
	_, common := newBackend(t)
	_, err := run(t, common, "login", "-u", "agent7", "-p", "secret")
	require.NoError(t, err)

	output, err := run(t, common, "grievances", "--json")
	require.NoError(t, err)

	var page struct {
		Tickets    []api.Ticket `json:"tickets"`
		Count      int          `json:"count"`
		TotalPages int          `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &page))
	require.Len(t, page.Tickets, 1)
	require.Equal(t, "GRV-41", page.Tickets[0].TicketID)
	require.Equal(t, 1, page.Count)
	require.Equal(t, 1, page.TotalPages)
}

func TestGrievancesRequiresLogin(t *testing.T) {
	_, common := newBackend(t)

	output, err := run(t, common, "grievances")
	require.Error(t, err)
	require.Contains(t, output, "Hint:")
}

func TestSubmitIncomingValidation(t *testing.T) {
	be, common := newBackend(t)
	_, err := run(t, common, "login", "-u", "agent7", "-p", "secret")
	require.NoError(t, err)

	output, err := run(t, common, "submit", "incoming", "--role", "Public", "--mobile", "12345")
	require.Error(t, err)
	require.Contains(t, output, "mobile: Mobile number must be 10 digits.")
	require.Contains(t, output, "name: Name is required.")
	require.Empty(t, be.saved)
}

func TestSubmitIncoming(t *testing.T) {
	be, common := newBackend(t)
	_, err := run(t, common, "login", "-u", "agent7", "-p", "secret")
	require.NoError(t, err)

	output, err := run(t, common, "submit", "incoming",
		"--role", "Public",
		"--name", "Ravi",
		"--mobile", "9876543210",
		"--query-type", "Others",
		"--district", "Barpeta",
		"--address", "Ward 3",
		"--description", "Certificate not received")
	require.NoError(t, err)
	require.Contains(t, output, "Saved ticket 77")

	require.Len(t, be.saved, 1)
	require.Equal(t, "incoming", be.saved[0]["entryType"])
	require.EqualValues(t, 362, be.saved[0]["districtId"])
}

func TestParseAnswers(t *testing.T) {
	r, err := parseAnswers([]string{"3=Yes", "4=5:very helpful"})
	require.NoError(t, err)
	require.Equal(t, "Yes", r[3].Response)
	require.Equal(t, "5", r[4].Response)
	require.Equal(t, "very helpful", r[4].Comment)

	_, err = parseAnswers([]string{"three=Yes"})
	require.Error(t, err)
	_, err = parseAnswers([]string{"3"})
	require.Error(t, err)
}

func TestPrefsSidebar(t *testing.T) {
	_, common := newBackend(t)

	output, err := run(t, common, "prefs", "sidebar")
	require.NoError(t, err)
	require.Equal(t, "sidebar: on\n", output)

	output, err = run(t, common, "prefs", "sidebar", "off")
	require.NoError(t, err)
	require.Equal(t, "sidebar: off\n", output)

	output, err = run(t, common, "prefs", "sidebar", "--json")
	require.NoError(t, err)
	require.JSONEq(t, `{"sidebarOpen":false}`, output)

	_, err = run(t, common, "prefs", "sidebar", "maybe")
	require.Error(t, err)
}

func TestParseTicketID(t *testing.T) {
	id, err := parseTicketID("41")
	require.NoError(t, err)
	require.EqualValues(t, 41, id)

	for _, bad := range []string{"GRV-41", "0", "-3"} {
		_, err := parseTicketID(bad)
		require.Error(t, err, bad)
		require.True(t, strings.Contains(err.Error(), "invalid ticket id"))
	}
}

func TestCheckSearchKind(t *testing.T) {
	require.NoError(t, checkSearchKind("Candidate", "id"))
	require.NoError(t, checkSearchKind("Trainer", "mobile"))
	require.EqualError(t, checkSearchKind("Trainer", "id"), "Trainer search supports --by name, mobile")
}

func TestCompleteRoles(t *testing.T) {
	roles, directive := completeRoles(nil, nil, "")
	require.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	require.Contains(t, roles, "Candidate")
	require.Contains(t, roles, "Public")
}
