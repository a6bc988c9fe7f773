package api

import (
	"context"
)

// Backend endpoints. All are POST.
const (
	EndpointLogin     = "/nw/login"
	EndpointMaster    = "/nw/master"
	EndpointSave      = "/nw/user/save"
	EndpointList      = "/nw/user/get"
	EndpointDashboard = "/nw/dashboard"
	EndpointChat      = "/nw/chat/id"
	EndpointChatReply = "/nw/chat/reply"
	EndpointUserData  = "/nw/master/get/user-data"
	EndpointQuestions = "/nw/master/get/questions"
)

// Login exchanges credentials for a token. It does not store the token;
// a falsy Status is returned as a normal response.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.Request(ctx, EndpointLogin, creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMasterData fetches roles, query types and districts. No token needed.
func (c *Client) GetMasterData(ctx context.Context) (*MasterDataResponse, error) {
	var out MasterDataResponse
	if err := c.Request(ctx, EndpointMaster, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveGrievance creates an incoming grievance or outgoing feedback record.
func (c *Client) SaveGrievance(ctx context.Context, req GrievanceRequest) (*SaveResponse, error) {
	if req.QuestionResponses == nil {
		req.QuestionResponses = map[string]QuestionResponse{}
	}
	var out SaveResponse
	if err := c.AuthenticatedRequest(ctx, EndpointSave, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveUnanswered records a feedback call that got no answer.
func (c *Client) SaveUnanswered(ctx context.Context, req UnansweredRequest) (*SaveResponse, error) {
	if req.QuestionResponses == nil {
		req.QuestionResponses = map[string]QuestionResponse{}
	}
	var out SaveResponse
	if err := c.AuthenticatedRequest(ctx, EndpointSave, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetGrievances lists one page of tickets. Only non-empty filters are sent.
func (c *Client) GetGrievances(ctx context.Context, q ListQuery) (*ListResponse, error) {
	var out ListResponse
	if err := c.AuthenticatedRequest(ctx, EndpointList, q.body(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDashboardStats fetches the dashboard counters.
func (c *Client) GetDashboardStats(ctx context.Context) (*DashboardResponse, error) {
	var out DashboardResponse
	if err := c.AuthenticatedRequest(ctx, EndpointDashboard, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChatData fetches a ticket with its chat history.
func (c *Client) GetChatData(ctx context.Context, id int64) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.AuthenticatedRequest(ctx, EndpointChat, map[string]int64{"id": id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendChatReply appends a reply to a ticket.
func (c *Client) SendChatReply(ctx context.Context, req ReplyRequest) (*Envelope, error) {
	var out Envelope
	if err := c.AuthenticatedRequest(ctx, EndpointChatReply, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserData searches candidates or training entities.
func (c *Client) GetUserData(ctx context.Context, q UserSearch) (*CandidateResponse, error) {
	var out CandidateResponse
	if err := c.AuthenticatedRequest(ctx, EndpointUserData, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetQuestions fetches the feedback questions for a role and query type.
func (c *Client) GetQuestions(ctx context.Context, roleID, queryTypeID int64) (*QuestionsResponse, error) {
	body := map[string]int64{"userRoleId": roleID, "queryTypeId": queryTypeID}
	var out QuestionsResponse
	if err := c.AuthenticatedRequest(ctx, EndpointQuestions, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
