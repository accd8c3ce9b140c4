// Package e2e drives a running garita instance over HTTP with godog.
//
// The suite needs a live server and seeded data:
//
//	GARITA_E2E_BASE_URL          base URL of the server under test
//	GARITA_E2E_TOKEN             bearer token for the kiosk operator
//	GARITA_E2E_QUESTIONNAIRE_ID  id of a seeded questionnaire
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// TestContext holds per-scenario HTTP state shared by all step packages.
type TestContext struct {
	baseURL         string
	token           string
	questionnaireID string
	client          *http.Client

	lastStatus int
	lastBody   map[string]any

	submissionID string
	questionID   string
}

func NewTestContext(baseURL, token, questionnaireID string) *TestContext {
	return &TestContext{
		baseURL:         strings.TrimRight(baseURL, "/"),
		token:           token,
		questionnaireID: questionnaireID,
		client:          &http.Client{Timeout: 30 * time.Second},
	}
}

// Reset clears scenario state so scenarios stay independent.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.submissionID = ""
	tc.questionID = ""
}

func (tc *TestContext) POST(path string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	if tc.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody = nil
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
		tc.lastBody = decoded
	}
	return nil
}

func (tc *TestContext) LastStatus() int {
	return tc.lastStatus
}

// GetResponseField walks a dotted path through the last JSON response,
// e.g. "submission.id" or "first_question.semantic_tag".
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	if tc.lastBody == nil {
		return nil, fmt.Errorf("no JSON response recorded")
	}

	var current any = tc.lastBody
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", field)
		}
	}
	return current, nil
}

func (tc *TestContext) GetQuestionnaireID() string { return tc.questionnaireID }

func (tc *TestContext) GetSubmissionID() string   { return tc.submissionID }
func (tc *TestContext) SetSubmissionID(id string) { tc.submissionID = id }

func (tc *TestContext) GetQuestionID() string   { return tc.questionID }
func (tc *TestContext) SetQuestionID(id string) { tc.questionID = id }
