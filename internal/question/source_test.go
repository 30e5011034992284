package question

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/timed-quiz/internal/metrics"
	"github.com/gokatarajesh/timed-quiz/internal/question/external"
)

const twoQuestions = `{"response_code":0,"results":[
	{"category":"Entertainment: Film","type":"multiple","difficulty":"medium","question":"Who directed &quot;Jaws&quot;?","correct_answer":"Steven Spielberg","incorrect_answers":["George Lucas","Ridley Scott","James Cameron"]},
	{"category":"Science","type":"multiple","difficulty":"easy","question":"What is 2 &gt; 1?","correct_answer":"Tom &amp; Jerry","incorrect_answers":["Caf&eacute;","&#039;quoted&#039;","Plain"]}
]}`

// fakeOpenTDB replays responses in order, repeating the last one.
type fakeOpenTDB struct {
	responses []fakeResponse
	calls     atomic.Int32
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeOpenTDB) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.responses) {
		n = len(f.responses) - 1
	}
	resp := f.responses[n]
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func newTestSource(t *testing.T, fake *fakeOpenTDB, cache BatchCache, opts Options) (*Source, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	m := metrics.New(prometheus.NewRegistry())
	client := external.NewOpenTDBClient(srv.URL, srv.Client())
	return NewSource(client, cache, opts, m, zerolog.Nop()), m
}

func identityShuffle(int, func(i, j int)) {}

func newRedisCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestFetchNormalizesAndDecodes(t *testing.T) {
	fake := &fakeOpenTDB{responses: []fakeResponse{{http.StatusOK, twoQuestions}}}
	src, _ := newTestSource(t, fake, nil, Options{Shuffle: identityShuffle})

	qs, err := src.Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, 1, qs[0].ID)
	assert.Equal(t, 2, qs[1].ID)
	assert.Equal(t, `Who directed "Jaws"?`, qs[0].Text)
	assert.Equal(t, "Entertainment: Film", qs[0].Category)
	assert.Equal(t, "What is 2 > 1?", qs[1].Text)
	assert.Equal(t, "Tom & Jerry", qs[1].CorrectAnswer)
	assert.Equal(t, []string{"Tom & Jerry", "Café", "'quoted'", "Plain"}, qs[1].Options)

	for _, q := range qs {
		assert.True(t, q.HasOption(q.CorrectAnswer))
		for _, opt := range q.Options {
			assert.NotContains(t, opt, "&amp;")
		}
	}
}

func TestFetchRetriesRateLimit(t *testing.T) {
	fake := &fakeOpenTDB{responses: []fakeResponse{
		{http.StatusTooManyRequests, ""},
		{http.StatusOK, `{"response_code":5,"results":[]}`},
		{http.StatusOK, twoQuestions},
	}}
	src, _ := newTestSource(t, fake, nil, Options{MaxRetries: 2})

	qs, err := src.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestFetchGivesUpAfterMaxRetries(t *testing.T) {
	fake := &fakeOpenTDB{responses: []fakeResponse{{http.StatusTooManyRequests, ""}}}
	src, _ := newTestSource(t, fake, nil, Options{MaxRetries: 2})

	_, err := src.Fetch(context.Background(), 2)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, KindRateLimited, Kind(err))
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestFetchDoesNotRetryTerminalErrors(t *testing.T) {
	tests := []struct {
		name string
		resp fakeResponse
		kind string
	}{
		{"no results", fakeResponse{http.StatusOK, `{"response_code":1,"results":[]}`}, KindEmptyResult},
		{"invalid parameter", fakeResponse{http.StatusOK, `{"response_code":2,"results":[]}`}, KindMalformedResponse},
		{"garbage", fakeResponse{http.StatusOK, `<html>`}, KindMalformedResponse},
		{"server error", fakeResponse{http.StatusBadGateway, ``}, KindNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeOpenTDB{responses: []fakeResponse{tt.resp}}
			src, _ := newTestSource(t, fake, nil, Options{MaxRetries: 2})

			_, err := src.Fetch(context.Background(), 2)
			require.Error(t, err)
			assert.Equal(t, tt.kind, Kind(err))
			assert.Equal(t, int32(1), fake.calls.Load())
		})
	}
}

func TestFetchZeroCountSkipsProvider(t *testing.T) {
	fake := &fakeOpenTDB{responses: []fakeResponse{{http.StatusOK, twoQuestions}}}
	src, _ := newTestSource(t, fake, nil, Options{})

	qs, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, qs)
	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestFetchServesCachedBatchWhenRateLimited(t *testing.T) {
	cache := newRedisCache(t)
	fake := &fakeOpenTDB{responses: []fakeResponse{
		{http.StatusOK, twoQuestions},
		{http.StatusTooManyRequests, ""},
	}}
	src, _ := newTestSource(t, fake, cache, Options{MaxRetries: 1})

	first, err := src.Fetch(context.Background(), 2)
	require.NoError(t, err)

	second, err := src.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.ElementsMatch(t, []string{first[0].Text, first[1].Text}, []string{second[0].Text, second[1].Text})
	assert.Equal(t, 1, second[0].ID)
}

func TestFetchCachedBatchTooSmall(t *testing.T) {
	cache := newRedisCache(t)
	fake := &fakeOpenTDB{responses: []fakeResponse{
		{http.StatusOK, twoQuestions},
		{http.StatusTooManyRequests, ""},
	}}
	src, _ := newTestSource(t, fake, cache, Options{})

	_, err := src.Fetch(context.Background(), 2)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), 5)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCacheKeepsLargerBatch(t *testing.T) {
	cache := newRedisCache(t)
	ctx := context.Background()
	params := external.FetchParams{Amount: 3, Difficulty: DifficultyEasy}

	big := []external.OpenTDBQuestion{{Question: "a"}, {Question: "b"}, {Question: "c"}}
	require.NoError(t, cache.Store(ctx, params, big))
	require.NoError(t, cache.Store(ctx, external.FetchParams{Amount: 1, Difficulty: DifficultyEasy}, big[:1]))

	got, err := cache.Load(ctx, params)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	missing, err := cache.Load(ctx, external.FetchParams{Difficulty: DifficultyHard})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNormalizeShuffleIsUniform(t *testing.T) {
	raw := external.OpenTDBQuestion{
		Question:        "q",
		CorrectAnswer:   "right",
		IncorrectAnswer: []string{"w1", "w2", "w3"},
	}
	const trials = 8000
	positions := make([]int, 4)
	src := NewSource(nil, nil, Options{}, nil, zerolog.Nop())

	for i := 0; i < trials; i++ {
		q := Normalize(1, raw, src.opts.Shuffle)
		require.Len(t, q.Options, 4)
		for pos, opt := range q.Options {
			if opt == "right" {
				positions[pos]++
			}
		}
	}

	for pos, n := range positions {
		assert.InDelta(t, trials/4, n, trials/4*0.15, "position %d", pos)
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindRateLimited, Kind(fmt.Errorf("wrap: %w", ErrRateLimited)))
	assert.Equal(t, KindEmptyResult, Kind(ErrEmptyResult))
	assert.Equal(t, KindMalformedResponse, Kind(ErrMalformedResponse))
	assert.Equal(t, KindNetwork, Kind(ErrNetwork))
	assert.Equal(t, KindNetwork, Kind(context.DeadlineExceeded))
}

func TestWarmerFillsCache(t *testing.T) {
	cache := newRedisCache(t)
	fake := &fakeOpenTDB{responses: []fakeResponse{{http.StatusOK, twoQuestions}}}
	src, _ := newTestSource(t, fake, cache, Options{})

	w := NewWarmer(src, zerolog.Nop(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.True(t, w.Enqueue(2))
	assert.Eventually(t, func() bool {
		batch, err := cache.Load(context.Background(), src.params(2))
		return err == nil && len(batch) == 2
	}, 2*time.Second, 10*time.Millisecond)

	w.Stop()
	<-done
	assert.True(t, strings.HasPrefix(cache.key(src.params(2)), "quiz:questions:"))
}

func TestFetchCoalescesConcurrentRequests(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-gate
		_, _ = w.Write([]byte(twoQuestions))
	}))
	t.Cleanup(srv.Close)
	src := NewSource(external.NewOpenTDBClient(srv.URL, srv.Client()), nil, Options{}, nil, zerolog.Nop())

	const callers = 5
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer done.Done()
			started.Done()
			qs, err := src.Fetch(context.Background(), 2)
			if err == nil && len(qs) != 2 {
				err = fmt.Errorf("got %d questions", len(qs))
			}
			errs <- err
		}()
	}
	started.Wait()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	done.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchSharedCallSurvivesCancelledCaller(t *testing.T) {
	gate := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		<-gate
		_, _ = w.Write([]byte(twoQuestions))
	}))
	t.Cleanup(srv.Close)
	src := NewSource(external.NewOpenTDBClient(srv.URL, srv.Client()), nil, Options{FetchTimeout: 5 * time.Second}, nil, zerolog.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := src.Fetch(firstCtx, 2)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		qs  []Question
		err error
	}
	second := make(chan result, 1)
	go func() {
		qs, err := src.Fetch(context.Background(), 2)
		second <- result{qs, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, KindNetwork, Kind(err))
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(gate)
	got := <-second
	require.NoError(t, got.err)
	assert.Len(t, got.qs, 2)
	assert.Equal(t, int32(1), calls.Load())
}
