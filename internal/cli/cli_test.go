package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/timed-quiz/internal/question"
)

const oneQuestion = `{"response_code":0,"results":[
	{"category":"Art","type":"boolean","difficulty":"easy","question":"Is &quot;Mona Lisa&quot; by Da Vinci?","correct_answer":"True","incorrect_answers":["False"]}
]}`

func TestFetchCommandPrintsBatch(t *testing.T) {
	amounts := make(chan string, 4)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		amounts <- r.URL.Query().Get("amount")
		_, _ = w.Write([]byte(oneQuestion))
	}))
	t.Cleanup(upstream.Close)

	t.Setenv("APP_ENV", "test")
	t.Setenv("SESSION_TOKEN_SECRET", "secret")
	t.Setenv("OPENTDB_BASE_URL", upstream.URL)

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"fetch", "--count", "1", "--env-file", filepath.Join(t.TempDir(), "missing.env")})

	// An explicitly named env file must exist.
	require.Error(t, cmd.Execute())

	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"fetch", "--count", "1"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "1", <-amounts)
	var qs []question.Question
	require.NoError(t, json.Unmarshal(out.Bytes(), &qs))
	require.Len(t, qs, 1)
	assert.Equal(t, `Is "Mona Lisa" by Da Vinci?`, qs[0].Text)
	assert.ElementsMatch(t, []string{"True", "False"}, qs[0].Options)
}

func TestEnvFileIsLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("QUIZ_TEST_ENV_FILE=loaded\n"), 0o600))
	t.Setenv("APP_ENV", "test")
	t.Setenv("QUIZ_TEST_ENV_FILE", "")
	os.Unsetenv("QUIZ_TEST_ENV_FILE")

	require.NoError(t, loadEnvFile(path, true))
	assert.Equal(t, "loaded", os.Getenv("QUIZ_TEST_ENV_FILE"))

	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "absent.env"), false))
	assert.Error(t, loadEnvFile(filepath.Join(t.TempDir(), "absent.env"), true))
}

func TestFetchCommandReportsKind(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response_code":1,"results":[]}`))
	}))
	t.Cleanup(upstream.Close)

	t.Setenv("APP_ENV", "test")
	t.Setenv("SESSION_TOKEN_SECRET", "secret")
	t.Setenv("OPENTDB_BASE_URL", upstream.URL)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"fetch", "--count", "3"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, question.ErrEmptyResult)
	assert.Contains(t, err.Error(), question.KindEmptyResult)
}
