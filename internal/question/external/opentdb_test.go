package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) (*OpenTDBClient, <-chan *url.URL) {
	t.Helper()
	captured := make(chan *url.URL, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured <- r.URL
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewOpenTDBClient(srv.URL, srv.Client()), captured
}

func TestFetchSuccess(t *testing.T) {
	client, urls := serve(t, http.StatusOK, `{"response_code":0,"results":[
		{"category":"Science","type":"multiple","difficulty":"easy","question":"What is H&amp;O?","correct_answer":"Water","incorrect_answers":["Fire","Air","Earth"]}
	]}`)

	qs, err := client.Fetch(context.Background(), FetchParams{Amount: 1, Category: 17, Difficulty: "easy", Type: "multiple"})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "What is H&amp;O?", qs[0].Question)
	assert.Equal(t, []string{"Fire", "Air", "Earth"}, qs[0].IncorrectAnswer)

	u := <-urls
	assert.Equal(t, "/api.php", u.Path)
	assert.Equal(t, "1", u.Query().Get("amount"))
	assert.Equal(t, "17", u.Query().Get("category"))
	assert.Equal(t, "easy", u.Query().Get("difficulty"))
	assert.Equal(t, "multiple", u.Query().Get("type"))
}

func TestFetchOmitsEmptyParams(t *testing.T) {
	client, urls := serve(t, http.StatusOK, `{"response_code":0,"results":[{"question":"q","correct_answer":"a","incorrect_answers":[]}]}`)

	_, err := client.Fetch(context.Background(), FetchParams{Amount: 15})
	require.NoError(t, err)
	assert.Equal(t, "amount=15", (<-urls).RawQuery)
}

func TestFetchErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"http 429", http.StatusTooManyRequests, ``, ErrRateLimited},
		{"code 5", http.StatusOK, `{"response_code":5,"results":[]}`, ErrRateLimited},
		{"code 1", http.StatusOK, `{"response_code":1,"results":[]}`, ErrEmptyResult},
		{"empty results", http.StatusOK, `{"response_code":0,"results":[]}`, ErrEmptyResult},
		{"code 2", http.StatusOK, `{"response_code":2,"results":[]}`, ErrMalformedResponse},
		{"code 3", http.StatusOK, `{"response_code":3}`, ErrMalformedResponse},
		{"code 4", http.StatusOK, `{"response_code":4}`, ErrMalformedResponse},
		{"unknown code", http.StatusOK, `{"response_code":42}`, ErrMalformedResponse},
		{"missing results", http.StatusOK, `{"response_code":0}`, ErrMalformedResponse},
		{"bad json", http.StatusOK, `{"response_code":`, ErrMalformedResponse},
		{"server error", http.StatusInternalServerError, `oops`, ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := serve(t, tt.status, tt.body)
			_, err := client.Fetch(context.Background(), FetchParams{Amount: 3})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := NewOpenTDBClient(addr, &http.Client{Timeout: time.Second})
	_, err := client.Fetch(context.Background(), FetchParams{Amount: 1})
	assert.ErrorIs(t, err, ErrNetwork)
}
