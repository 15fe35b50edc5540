package worker

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/sitebot/sitebot/internal/history"
)

// TrainingRequest asks for a bot to be trained on a website.
type TrainingRequest struct {
	ID     int    `json:"id"`
	Domain string `json:"domain"`
}

// TrainingResponse reports the outcome of a training run.
type TrainingResponse struct {
	BotID   int    `json:"bot_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChatTurn is one prior message in a completion request. Type 1 is a user
// turn; anything else is treated as a system/assistant turn.
type ChatTurn struct {
	Type    int    `json:"type"`
	Content string `json:"content"`
}

// CompletionRequest asks a bot to answer a question.
type CompletionRequest struct {
	Question      string     `json:"question"`
	CorrelationID string     `json:"correlationId"`
	BotID         int        `json:"bot_id"`
	LastMessages  []ChatTurn `json:"lastMessages"`
	ReplyTo       string     `json:"replyTo,omitempty"`
}

// CompletionResponse carries the answer back on the caller's reply stream.
type CompletionResponse struct {
	Question      string `json:"question"`
	Answer        string `json:"answer"`
	CorrelationID string `json:"correlationId"`
}

var errMissingFields = errors.New("missing required fields")

// decodeTraining parses a training request. Some producers JSON-encode the
// request twice, delivering a JSON string that itself contains the object;
// both forms are accepted.
func decodeTraining(body []byte) (*TrainingRequest, error) {
	data := bytes.TrimSpace(body)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, err
		}
		data = []byte(inner)
	}

	var req TrainingRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if req.ID <= 0 || req.Domain == "" {
		return nil, errMissingFields
	}
	return &req, nil
}

// decodeCompletion parses a completion request.
func decodeCompletion(body []byte) (*CompletionRequest, error) {
	var req CompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	if req.Question == "" || req.BotID <= 0 {
		return nil, errMissingFields
	}
	return &req, nil
}

// toHistory converts wire chat turns to conversation messages, preserving
// order.
func toHistory(turns []ChatTurn) []history.Message {
	msgs := make([]history.Message, len(turns))
	for i, turn := range turns {
		role := history.RoleSystem
		if turn.Type == 1 {
			role = history.RoleUser
		}
		msgs[i] = history.Message{Role: role, Content: turn.Content}
	}
	return msgs
}
