package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"callcenter/internal/search"
)

// Flag is a boolean the backend sends as true, "true", 1 or "1".
// Anything else, including null, decodes as false.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	*f = Flag(s == "true" || s == "1")
	return nil
}

// FlexInt is an integer the backend sends either as a number or as a
// numeric string. null and "" decode as 0.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		v = int64(f)
	}
	*n = FlexInt(v)
	return nil
}

// FlexString is a string the backend sometimes sends as a bare number.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(b)
	return nil
}

// Envelope carries the status fields every response may include.
//
// Success is only ever set by the client itself, on the implicit-success
// path; the backend reports outcome through Status.
type Envelope struct {
	Status  Flag   `json:"status"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message"`
}

func (e *Envelope) envelope() *Envelope { return e }

// OK reports whether the backend reported success.
func (e *Envelope) OK() bool { return bool(e.Status) }

// Credentials is the login request.
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// LoginResponse is the login reply. Token and Username are only present
// on success.
type LoginResponse struct {
	Envelope
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// Role is a master-data user role.
type Role struct {
	ID   FlexInt `json:"pklUserRoleId" yaml:"id"`
	Name string  `json:"vsRoleName" yaml:"name"`
}

// QueryType is a master-data query category.
type QueryType struct {
	ID   FlexInt `json:"pklQueryTypeId" yaml:"id"`
	Name string  `json:"vsQueryType" yaml:"name"`
}

// District is a master-data district.
type District struct {
	ID   FlexInt `json:"pklDistrictId" yaml:"id"`
	Name string  `json:"vsDistrictName" yaml:"name"`
}

// MasterData holds the lookup tables used by the intake forms.
type MasterData struct {
	Role      []Role      `json:"role" yaml:"roles"`
	QueryType []QueryType `json:"queryType" yaml:"queryTypes"`
	District  []District  `json:"district" yaml:"districts"`
}

type MasterDataResponse struct {
	Envelope
	Data *MasterData `json:"data"`
}

// QuestionResponse is one answered question in a save request.
type QuestionResponse struct {
	QuestionID      int64  `json:"questionId"`
	Response        string `json:"response"`
	ResponseComment string `json:"responseComment"`
}

// GrievanceRequest is the save payload for incoming grievances and
// outgoing feedback. QuestionResponses is always sent, as {} when empty.
type GrievanceRequest struct {
	User              string                      `json:"user"`
	Mobile            string                      `json:"mobile"`
	QueryTypeID       int64                       `json:"queryTypeId"`
	EntryDateTime     string                      `json:"entryDateTime"`
	QueryDescription  string                      `json:"queryDescription"`
	RoleID            int64                       `json:"roleId"`
	EntryType         string                      `json:"entryType"`
	DistrictID        int64                       `json:"districtId"`
	Address           string                      `json:"address"`
	UserID            *int64                      `json:"userId,omitempty"`
	QuestionResponses map[string]QuestionResponse `json:"questionResponses"`
}

// UnansweredRequest is the save payload for feedback calls that got no
// answer. The backend accepts it on the same endpoint with its own field
// names.
type UnansweredRequest struct {
	UserRoleID        int64                       `json:"userRoleId"`
	UserName          string                      `json:"vsUserName"`
	Mobile            string                      `json:"vsMobile"`
	QueryType         string                      `json:"vsQueryType"`
	QueryDescription  string                      `json:"vsQueryDescription"`
	EntryDateTime     string                      `json:"vsEntryDateTime"`
	EntryType         string                      `json:"vsEntryType"`
	DistrictID        int64                       `json:"districtId"`
	Address           string                      `json:"vsAddress"`
	QuestionResponses map[string]QuestionResponse `json:"questionResponses"`
	Unanswered        int                         `json:"unanswered"`
}

type SaveResponse struct {
	Envelope
	Data *struct {
		PklCrmUserID FlexInt `json:"pklCrmUserId"`
	} `json:"data"`
}

// TicketNumber returns the created ticket's internal id, or 0.
func (r *SaveResponse) TicketNumber() int64 {
	if r == nil || r.Data == nil {
		return 0
	}
	return int64(r.Data.PklCrmUserID)
}

// ListQuery is the list-grievances request. Zero page values fall back to
// page 1 and size 10.
type ListQuery struct {
	LoginID     int64
	CurrentPage int
	PageSize    int
	Filters     search.Filters
}

func (q ListQuery) body() map[string]any {
	page, size := q.CurrentPage, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	body := map[string]any{
		"loginId":     q.LoginID,
		"currentPage": page,
		"pageSize":    size,
	}
	for k, v := range q.Filters.Map() {
		body[k] = v
	}
	return body
}

// Ticket is one grievance or feedback record.
type Ticket struct {
	ID               FlexInt    `json:"pklCrmUserId"`
	TicketID         string     `json:"vsTicketId"`
	UserName         string     `json:"vsUserName"`
	Mobile           FlexString `json:"vsMobile"`
	RoleName         string     `json:"vsRoleName"`
	QueryType        string     `json:"vsQueryType"`
	QueryDescription string     `json:"vsQueryDescription"`
	EntryType        string     `json:"vsEntryType"`
	Status           string     `json:"vsStatus"`
	IsUnanswered     Flag       `json:"bIsUnanswered"`
	EntryDateTime    string     `json:"vsEntryDateTime"`
	District         string     `json:"vsDistrictName"`
	Address          string     `json:"vsAddress"`
}

type ListResponse struct {
	Envelope
	Data  []Ticket `json:"data"`
	Count FlexInt  `json:"count"`
}

// Stats are the dashboard counters.
type Stats struct {
	TotalTicket          FlexInt `json:"totalTicket"`
	OpenTicket           FlexInt `json:"openTicket"`
	ClosedTicket         FlexInt `json:"closedTicket"`
	TotalFeedbacks       FlexInt `json:"totalFeedbacks"`
	TotalAnsweredCalls   FlexInt `json:"totalAnsweredCalls"`
	TotalUnansweredCalls FlexInt `json:"totalUnansweredCalls"`
}

type DashboardResponse struct {
	Envelope
	Data Stats `json:"data"`
}

// ChatEntry is one reply in a ticket's history.
type ChatEntry struct {
	ID            FlexInt `json:"pklCrmChatId"`
	Reply         string  `json:"vsReplyChat"`
	EntryType     string  `json:"vsEntryType"`
	EntryDateTime string  `json:"vsEntryDateTime"`
}

// AnsweredQuestion is a feedback question together with the recorded answer.
type AnsweredQuestion struct {
	QuestionID FlexInt `json:"fklQuestionId"`
	Question   string  `json:"vsInteractionQuestion"`
	Type       string  `json:"questionType"`
	Response   string  `json:"vsResponse"`
	Comment    string  `json:"vsResponseComment"`
}

type ChatData struct {
	Initial     []Ticket           `json:"initial"`
	ChatHistory []ChatEntry        `json:"chatHistory"`
	Questions   []AnsweredQuestion `json:"questions,omitempty"`
}

type ChatResponse struct {
	Envelope
	Data *ChatData `json:"data"`
}

// ReplyRequest appends an entry to a ticket's chat. Status 1 closes the ticket.
type ReplyRequest struct {
	UserID        int64  `json:"userId"`
	ReplyChat     string `json:"replyChat"`
	EntryDateTime string `json:"entryDateTime"`
	EntryType     string `json:"entryType"`
	Status        int    `json:"status"`
}

// UserSearch looks up registered candidates or training entities.
// QueryType is the search kind: "name" or "mobile".
type UserSearch struct {
	UserType   string `json:"userType"`
	QueryType  string `json:"queryType"`
	SearchText string `json:"searchText"`
}

// Candidate is a search hit. Different user types name their id and name
// fields differently; use ResolvedID and DisplayName.
type Candidate struct {
	ID            FlexInt    `json:"Id"`
	CandidateID   FlexInt    `json:"candidateId"`
	TCID          FlexInt    `json:"TCId"`
	LowerID       FlexInt    `json:"id"`
	CandidateName string     `json:"candidateName"`
	Name          string     `json:"name"`
	Mobile        FlexString `json:"mobile"`
	District      string     `json:"district"`
	Address       string     `json:"address"`
}

// ResolvedID returns the first non-zero id field.
func (c Candidate) ResolvedID() int64 {
	for _, id := range []FlexInt{c.ID, c.CandidateID, c.TCID, c.LowerID} {
		if id != 0 {
			return int64(id)
		}
	}
	return 0
}

// DisplayName prefers candidateName over name.
func (c Candidate) DisplayName() string {
	if c.CandidateName != "" {
		return c.CandidateName
	}
	return c.Name
}

type CandidateResponse struct {
	Envelope
	Data []Candidate `json:"data"`
}

// Question is a feedback question for a role and query type.
type Question struct {
	ID   FlexInt    `json:"pklQuestionId"`
	Text string     `json:"vsInteractionQuestion"`
	Type FlexString `json:"bQuestionType"`
}

// Response-type tags.
const (
	QuestionYesNo  = "yesno"
	QuestionRating = "rating"
	QuestionText   = "text"
)

// Kind maps the backend's numeric question type to a response-type tag.
func (q Question) Kind() string {
	switch q.Type {
	case "1":
		return QuestionYesNo
	case "2":
		return QuestionRating
	default:
		return QuestionText
	}
}

type QuestionsResponse struct {
	Envelope
	Data *struct {
		QueryType []Question `json:"queryType"`
	} `json:"data"`
}

// Questions returns the question list, or nil.
func (r *QuestionsResponse) Questions() []Question {
	if r == nil || r.Data == nil {
		return nil
	}
	return r.Data.QueryType
}
