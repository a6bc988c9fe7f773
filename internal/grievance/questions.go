package grievance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"callcenter/internal/api"
	apperrors "callcenter/internal/errors"
)

// Answer is the operator's answer to one feedback question.
type Answer struct {
	Response string
	Comment  string
}

// Responses holds answers keyed by question id.
type Responses map[int64]Answer

// NewResponses returns a blank answer for each question.
func NewResponses(questions []api.Question) Responses {
	r := make(Responses, len(questions))
	for _, q := range questions {
		r[int64(q.ID)] = Answer{}
	}
	return r
}

// Validate requires an answer to every question. Keys are
// "question_<id>"; messages number questions from 1 in list order.
func (r Responses) Validate(questions []api.Question) apperrors.ValidationErrors {
	errs := apperrors.ValidationErrors{}
	for i, q := range questions {
		a, ok := r[int64(q.ID)]
		key := fmt.Sprintf("question_%d", int64(q.ID))
		if !ok || a.Response == "" {
			errs[key] = fmt.Sprintf("Question %d is required.", i+1)
			continue
		}
		if err := ValidateAnswer(q, a.Response); err != nil {
			errs[key] = fmt.Sprintf("Question %d: %s", i+1, err)
		}
	}
	return errs
}

// Payload converts the answered entries to the save format. Unanswered
// entries are left out.
func (r Responses) Payload() map[string]api.QuestionResponse {
	out := make(map[string]api.QuestionResponse)
	for id, a := range r {
		if a.Response == "" {
			continue
		}
		out[strconv.FormatInt(id, 10)] = api.QuestionResponse{
			QuestionID:      id,
			Response:        a.Response,
			ResponseComment: a.Comment,
		}
	}
	return out
}

// ValidateAnswer checks answer against the question's response type:
// Yes or No for yesno, 1 to 5 for rating, anything for text.
func ValidateAnswer(q api.Question, answer string) error {
	switch q.Kind() {
	case api.QuestionYesNo:
		if answer != "Yes" && answer != "No" {
			return fmt.Errorf("answer must be Yes or No")
		}
	case api.QuestionRating:
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil || n < 1 || n > 5 {
			return fmt.Errorf("rating must be between 1 and 5")
		}
	}
	return nil
}

// LoadQuestions fetches the questions for a role and query type by name.
// An unknown name or an unsuccessful fetch yields no questions.
func LoadQuestions(ctx context.Context, client *api.Client, m *Master, role, queryType string) ([]api.Question, error) {
	roleID, okRole := m.ResolveRole(role)
	queryTypeID, okQuery := m.ResolveQueryType(queryType)
	if !okRole || !okQuery {
		return nil, nil
	}

	resp, err := client.GetQuestions(ctx, roleID, queryTypeID)
	if err != nil {
		return nil, err
	}
	if resp.Message != masterFetchedMessage {
		return nil, nil
	}
	return resp.Questions(), nil
}
