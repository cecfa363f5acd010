package genclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/suite"
)

type ClientTestSuite struct {
	suite.Suite
	server *httptest.Server
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) TearDownTest() {
	if s.server != nil {
		s.server.Close()
	}
}

func (s *ClientTestSuite) TestGenerate() {
	prompt := gofakeit.Sentence(5)
	wantResult := gofakeit.URL()

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal(RouteGenerate, r.URL.Path)

		var req Request
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&req))
		s.Equal(int64(1), req.UserID)
		s.Equal(prompt, req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		s.Require().NoError(json.NewEncoder(w).Encode(Response{Result: wantResult}))
	}))

	client := New(s.server.URL)
	result, err := client.Generate(s.T().Context(), 1, prompt)

	s.Require().NoError(err)
	s.Equal(wantResult, result)
}

func (s *ClientTestSuite) TestGenerateBadStatus() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	client := New(s.server.URL)
	_, err := client.Generate(s.T().Context(), 1, gofakeit.Sentence(5))

	s.Require().Error(err)
	var statusCodeError *StatusCodeError
	s.Require().ErrorAs(err, &statusCodeError)
	s.Equal(http.StatusServiceUnavailable, statusCodeError.Code)
}

func (s *ClientTestSuite) TestGenerateMalformedResponse() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, wErr := w.Write([]byte("not json"))
		s.NoError(wErr)
	}))

	client := New(s.server.URL)
	_, err := client.Generate(s.T().Context(), 1, gofakeit.Sentence(5))
	s.Error(err)
}
