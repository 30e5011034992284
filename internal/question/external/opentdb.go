package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Provider failure classes. Every error returned by OpenTDBClient.Fetch wraps one of these.
var (
	ErrRateLimited       = errors.New("provider rate limited")
	ErrNetwork           = errors.New("provider unreachable")
	ErrEmptyResult       = errors.New("provider returned no questions")
	ErrMalformedResponse = errors.New("provider response malformed")
)

// OpenTDB response codes.
const (
	codeSuccess        = 0
	codeNoResults      = 1
	codeInvalidParam   = 2
	codeTokenNotFound  = 3
	codeTokenEmpty     = 4
	codeRateLimit      = 5
	defaultOpenTDBBase = "https://opentdb.com"
)

// OpenTDBClient fetches questions from the Open Trivia DB (no API key).
type OpenTDBClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenTDBClient(baseURL string, httpClient *http.Client) *OpenTDBClient {
	if baseURL == "" {
		baseURL = defaultOpenTDBBase
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &OpenTDBClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// OpenTDBQuestion is a raw provider record. Text fields are HTML-entity encoded.
type OpenTDBQuestion struct {
	Category        string   `json:"category"`
	Type            string   `json:"type"`
	Difficulty      string   `json:"difficulty"`
	Question        string   `json:"question"`
	CorrectAnswer   string   `json:"correct_answer"`
	IncorrectAnswer []string `json:"incorrect_answers"`
}

type openTDBResponse struct {
	ResponseCode int                `json:"response_code"`
	Results      *[]OpenTDBQuestion `json:"results"`
}

// FetchParams narrows a provider request. Zero values mean "any".
type FetchParams struct {
	Amount     int
	Category   int
	Difficulty string
	Type       string
}

// Key identifies the request; equal params yield equal keys.
func (p FetchParams) Key() string {
	return p.query().Encode()
}

func (p FetchParams) query() url.Values {
	values := url.Values{}
	values.Set("amount", strconv.Itoa(p.Amount))
	if p.Category > 0 {
		values.Set("category", strconv.Itoa(p.Category))
	}
	if p.Difficulty != "" {
		values.Set("difficulty", p.Difficulty)
	}
	if p.Type != "" {
		values.Set("type", p.Type)
	}
	return values
}

// Fetch performs a single provider request and classifies any failure.
func (c *OpenTDBClient) Fetch(ctx context.Context, params FetchParams) ([]OpenTDBQuestion, error) {
	endpoint := fmt.Sprintf("%s/api.php?%s", c.baseURL, params.query().Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: http %d", ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: opentdb non-2xx: %d", ErrNetwork, resp.StatusCode)
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}

	switch payload.ResponseCode {
	case codeSuccess:
	case codeNoResults:
		return nil, fmt.Errorf("%w: response code %d", ErrEmptyResult, payload.ResponseCode)
	case codeRateLimit:
		return nil, fmt.Errorf("%w: response code %d", ErrRateLimited, payload.ResponseCode)
	case codeInvalidParam, codeTokenNotFound, codeTokenEmpty:
		return nil, fmt.Errorf("%w: response code %d", ErrMalformedResponse, payload.ResponseCode)
	default:
		return nil, fmt.Errorf("%w: unknown response code %d", ErrMalformedResponse, payload.ResponseCode)
	}

	if payload.Results == nil {
		return nil, fmt.Errorf("%w: missing results", ErrMalformedResponse)
	}
	if len(*payload.Results) == 0 {
		return nil, ErrEmptyResult
	}
	return *payload.Results, nil
}
