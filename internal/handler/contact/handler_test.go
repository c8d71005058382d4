package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contactService "github.com/camwood/camwood-site/backend/internal/service/contact"
)

type fakeSubmitter struct {
	err error
	got contactService.Submission
}

func (f *fakeSubmitter) Submit(_ context.Context, sub contactService.Submission) error {
	f.got = sub
	if err := sub.Validate(); err != nil {
		return err
	}
	return f.err
}

func post(t *testing.T, submitter *fakeSubmitter, body any) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	New(submitter).RegisterRoutes(r)

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/contact", bytes.NewReader(payload))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func validBody() map[string]string {
	return map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "ada@example.com",
		"purpose":   "demo",
		"message":   "Show me a decision engine.",
	}
}

func TestContactSuccess(t *testing.T) {
	submitter := &fakeSubmitter{}
	resp := post(t, submitter, validBody())

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), contactService.SuccessMessage)
	assert.Equal(t, "demo", submitter.got.Purpose)
}

func TestContactValidationFailure(t *testing.T) {
	body := validBody()
	delete(body, "email")
	resp := post(t, &fakeSubmitter{}, body)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	var decoded struct {
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &decoded))
	assert.Equal(t, []string{"email"}, decoded.Fields)
}

func TestContactErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		text   string
	}{
		{"not configured", contactService.ErrBackendNotConfigured, http.StatusServiceUnavailable, "backend address is missing"},
		{"rejected", &contactService.SubmitError{Status: 500, Message: "mailbox full"}, http.StatusBadGateway, "mailbox full"},
		{"network", errors.Join(contactService.ErrNetwork, errors.New("dial tcp")), http.StatusBadGateway, "network error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, &fakeSubmitter{err: tc.err}, validBody())
			assert.Equal(t, tc.status, resp.Code)
			assert.Contains(t, resp.Body.String(), tc.text)
		})
	}
}

func TestContactPurposes(t *testing.T) {
	r := chi.NewRouter()
	New(&fakeSubmitter{}).RegisterRoutes(r)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/contact/purposes", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	var purposes []string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &purposes))
	assert.Equal(t, contactService.Purposes, purposes)
}
