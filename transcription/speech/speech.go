// Package speech implements transcription.Provider on top of the Azure Speech-to-Text v3.1
// batch transcription REST API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxflow/go-transcribe/transcription"
	"github.com/voxflow/go-transcribe/workflow"
)

const (
	DefaultLocale      = "en-US"
	DefaultDisplayName = "Transcription"

	keyHeader = "Ocp-Apim-Subscription-Key"

	maxResponseSize = 16 << 20
)

type Options struct {
	// Endpoint of the speech resource, e.g. https://westeurope.api.cognitive.microsoft.com/
	Endpoint string

	Key string

	Locale      string
	DisplayName string

	// HTTPClient used for all requests. Defaults to a client with a 30 second timeout
	HTTPClient *http.Client
}

type Client struct {
	options Options
	http    *http.Client
}

var _ transcription.Provider = (*Client)(nil)

func New(options Options) (*Client, error) {
	if options.Endpoint == "" {
		return nil, errors.New("speech endpoint is required")
	}

	if !strings.HasSuffix(options.Endpoint, "/") {
		options.Endpoint += "/"
	}

	if options.Locale == "" {
		options.Locale = DefaultLocale
	}

	if options.DisplayName == "" {
		options.DisplayName = DefaultDisplayName
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		options: options,
		http:    httpClient,
	}, nil
}

type createRequest struct {
	ContentURLs []string `json:"contentUrls"`
	Locale      string   `json:"locale"`
	DisplayName string   `json:"displayName"`
}

type job struct {
	Self   string `json:"self"`
	Status string `json:"status"`
	Links  struct {
		Files string `json:"files"`
	} `json:"links"`
}

type files struct {
	Values []struct {
		Kind  string `json:"kind"`
		Links struct {
			ContentURL string `json:"contentUrl"`
		} `json:"links"`
	} `json:"values"`
}

type details struct {
	CombinedRecognizedPhrases []struct {
		Display string `json:"display"`
	} `json:"combinedRecognizedPhrases"`
}

// SubmitJob creates a transcription job for the given audio. The handle of the returned job is
// the URL of the job resource.
func (c *Client) SubmitJob(ctx context.Context, audioURL string) (*transcription.Job, error) {
	body, err := json.Marshal(&createRequest{
		ContentURLs: []string{audioURL},
		Locale:      c.options.Locale,
		DisplayName: c.options.DisplayName,
	})
	if err != nil {
		return nil, workflow.Permanent(fmt.Errorf("encoding request: %w", err))
	}

	var j job
	if err := c.do(ctx, http.MethodPost, c.options.Endpoint+"speechtotext/v3.1/transcriptions", body, &j); err != nil {
		return nil, err
	}

	if j.Self == "" {
		return nil, workflow.NewPermanentError(workflow.KindBadResponse, "job response without self link")
	}

	status, err := jobStatus(j.Status)
	if err != nil {
		return nil, err
	}

	return &transcription.Job{
		Handle: j.Self,
		Status: status,
	}, nil
}

// LookupJob fetches the job and, once it succeeded, its transcript. A succeeded job without a
// transcript file or recognized phrases is a permanent BadResponse error.
func (c *Client) LookupJob(ctx context.Context, handle string) (*transcription.Job, error) {
	var j job
	if err := c.do(ctx, http.MethodGet, handle, nil, &j); err != nil {
		return nil, err
	}

	status, err := jobStatus(j.Status)
	if err != nil {
		return nil, err
	}

	if status != transcription.JobStatusSucceeded {
		return &transcription.Job{Handle: handle, Status: status}, nil
	}

	if j.Links.Files == "" {
		return nil, workflow.NewPermanentError(workflow.KindBadResponse, "succeeded job without files link")
	}

	var f files
	if err := c.do(ctx, http.MethodGet, j.Links.Files, nil, &f); err != nil {
		return nil, err
	}

	var contentURL string
	for _, v := range f.Values {
		if v.Kind == "Transcription" {
			contentURL = v.Links.ContentURL
			break
		}
	}

	if contentURL == "" {
		return nil, workflow.NewPermanentError(workflow.KindBadResponse, "job files without transcription")
	}

	var d details
	if err := c.do(ctx, http.MethodGet, contentURL, nil, &d); err != nil {
		return nil, err
	}

	if len(d.CombinedRecognizedPhrases) == 0 || d.CombinedRecognizedPhrases[0].Display == "" {
		return nil, workflow.NewPermanentError(workflow.KindBadResponse, "transcription without recognized phrases")
	}

	return &transcription.Job{
		Handle: handle,
		Status: status,
		Text:   d.CombinedRecognizedPhrases[0].Display,
	}, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, v any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return workflow.NewPermanentError(workflow.KindBadResponse, fmt.Sprintf("creating request: %v", err))
	}

	req.Header.Set(keyHeader, c.options.Key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return workflow.NewError(workflow.KindUnreachable, fmt.Sprintf("%s %s: %v", method, url, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return workflow.NewError(workflow.KindUnreachable, fmt.Sprintf("reading response: %v", err))
	}

	if err := classifyStatus(resp.StatusCode, method, url); err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return workflow.NewPermanentError(workflow.KindBadResponse, fmt.Sprintf("decoding response of %s %s: %v", method, url, err))
	}

	return nil
}

// classifyStatus maps HTTP status codes to error kinds. Throttling and server errors are
// transient, rejected credentials and any other failure are permanent.
func classifyStatus(code int, method, url string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return workflow.NewPermanentError(workflow.KindAuthFailure, fmt.Sprintf("%s %s: status %d", method, url, code))
	case code == http.StatusTooManyRequests || code >= 500:
		return workflow.NewError(workflow.KindUnreachable, fmt.Sprintf("%s %s: status %d", method, url, code))
	default:
		return workflow.NewPermanentError(workflow.KindBadResponse, fmt.Sprintf("%s %s: status %d", method, url, code))
	}
}

// jobStatus maps the service's job status. A missing or unknown status is a permanent
// BadResponse, the job would otherwise look unfinished forever.
func jobStatus(s string) (transcription.JobStatus, error) {
	switch s {
	case "NotStarted":
		return transcription.JobStatusSubmitted, nil
	case "Running":
		return transcription.JobStatusRunning, nil
	case "Succeeded":
		return transcription.JobStatusSucceeded, nil
	case "Failed":
		return transcription.JobStatusFailed, nil
	case "":
		return "", workflow.NewPermanentError(workflow.KindBadResponse, "job response without status")
	default:
		return "", workflow.NewPermanentError(workflow.KindBadResponse, fmt.Sprintf("unknown job status %q", s))
	}
}
