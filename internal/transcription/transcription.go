package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/config"
	"call-intel-go/internal/logger"
)

// Job identifies submitted work. ResultURL is set when the service already
// holds a finished transcript.
type Job struct {
	MediaID   string `json:"media_id"`
	ResultURL string `json:"result_url,omitempty"`
}

// Transcriber turns a recording locator into bracketed transcript text.
type Transcriber interface {
	Submit(ctx context.Context, mediaURI string) (Job, error)
	Fetch(ctx context.Context, job Job) (string, error)
}

type publishResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		MediaID          string `json:"MediaId"`
		Status           string `json:"Status"`
		TranscriptionURL string `json:"TranscriptionURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

type statusResponse struct {
	Code   int    `json:"Code"`
	Status string `json:"Status"`
	Data   struct {
		Status               string `json:"Status"`
		TranscriptionTextURL string `json:"TranscriptionTextURL"`
	} `json:"Data"`
	Reason string `json:"Reason,omitempty"`
}

// HTTPClient talks to the transcription service: publish, poll status, download.
type HTTPClient struct {
	base         string
	http         *http.Client
	log          *logger.Logger
	maxElapsed   time.Duration
	pollInterval time.Duration
	maxPolls     int
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option { return func(h *HTTPClient) { h.http = c } }

func WithMaxElapsed(d time.Duration) Option { return func(h *HTTPClient) { h.maxElapsed = d } }

func WithPolling(interval time.Duration, attempts int) Option {
	return func(h *HTTPClient) { h.pollInterval, h.maxPolls = interval, attempts }
}

func WithLogger(l *logger.Logger) Option { return func(h *HTTPClient) { h.log = l } }

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		base:         strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 12 * time.Second},
		maxElapsed:   12 * time.Second,
		pollInterval: 1500 * time.Millisecond,
		maxPolls:     40,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.New()
	}
	h.log = h.log.Component("transcription")
	return h
}

func (h *HTTPClient) Submit(ctx context.Context, mediaURI string) (Job, error) {
	const op = "transcription.submit"
	var resp publishResponse
	err := h.doJSON(ctx, func() (*http.Request, error) {
		var b bytes.Buffer
		w := multipart.NewWriter(&b)
		if err := w.WriteField("callRecordingLink", mediaURI); err != nil {
			return nil, err
		}
		if err := w.WriteField("callType", "PNS"); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/transcribe", &b)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}, &resp)
	if err != nil {
		return Job{}, apperrors.Wrap(apperrors.ErrTranscription, op, err)
	}
	if resp.Code != http.StatusOK {
		return Job{}, apperrors.New(apperrors.ErrTranscription, op, "publish rejected: code=%d reason=%s", resp.Code, resp.Reason)
	}
	job := Job{MediaID: resp.Data.MediaID}
	if resp.Data.TranscriptionURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		job.ResultURL = resp.Data.TranscriptionURL
	}
	h.log.WithField("media_id", job.MediaID).WithField("ready", job.ResultURL != "").Debug("recording submitted")
	return job, nil
}

// Fetch waits for the job to finish and downloads the transcript text.
func (h *HTTPClient) Fetch(ctx context.Context, job Job) (string, error) {
	const op = "transcription.fetch"
	resultURL := job.ResultURL
	if resultURL == "" {
		var err error
		resultURL, err = h.poll(ctx, job.MediaID)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrTranscription, op, err)
		}
	}
	text, err := h.download(ctx, resultURL)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTranscription, op, err)
	}
	return text, nil
}

func (h *HTTPClient) poll(ctx context.Context, mediaID string) (string, error) {
	if mediaID == "" {
		return "", errors.New("media id is required")
	}
	u, err := url.Parse(h.base + "/getstatus")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("mediaId", mediaID)
	u.RawQuery = q.Encode()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	for i := 0; i < h.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		var s statusResponse
		err := h.doJSON(ctx, func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}, &s)
		if err != nil {
			h.log.WithField("media_id", mediaID).WithField("error", err.Error()).Warn("status check failed")
			continue
		}
		switch s.Data.Status {
		case "Success":
			return s.Data.TranscriptionTextURL, nil
		case "Failed":
			return "", fmt.Errorf("transcription failed: %s", s.Reason)
		}
	}
	return "", fmt.Errorf("transcription timeout after %d polls", h.maxPolls)
}

func (h *HTTPClient) download(ctx context.Context, target string) (string, error) {
	var text string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := h.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("download failed: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("download failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
		}
		text = string(b)
		return nil
	}
	if err := backoff.Retry(op, h.backoff(ctx)); err != nil {
		return "", err
	}
	return text, nil
}

// doJSON retries transport errors and 5xx responses. Other non-2xx
// responses fail immediately.
func (h *HTTPClient) doJSON(ctx context.Context, newReq func() (*http.Request, error), target any) error {
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := h.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("request rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		if len(body) == 0 {
			return fmt.Errorf("empty body")
		}
		if err := json.Unmarshal(body, target); err != nil {
			return backoff.Permanent(fmt.Errorf("json decode error: %w", err))
		}
		return nil
	}
	return backoff.Retry(op, h.backoff(ctx))
}

func (h *HTTPClient) backoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = h.maxElapsed
	return backoff.WithContext(bo, ctx)
}

// DirTranscriber reads pre-made transcripts named <recording>.txt from a directory.
type DirTranscriber struct {
	Dir string
}

func (d DirTranscriber) Submit(_ context.Context, mediaURI string) (Job, error) {
	u, err := url.Parse(mediaURI)
	name := mediaURI
	if err == nil && u.Path != "" {
		name = u.Path
	}
	base := path.Base(name)
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		return Job{}, apperrors.New(apperrors.ErrTranscription, "transcription.dir_submit", "cannot derive recording name from %q", mediaURI)
	}
	return Job{MediaID: base}, nil
}

func (d DirTranscriber) Fetch(_ context.Context, job Job) (string, error) {
	b, err := os.ReadFile(filepath.Join(d.Dir, job.MediaID+".txt"))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrTranscription, "transcription.dir_fetch", err)
	}
	return string(b), nil
}

// StaticTranscriber returns canned text. Texts is keyed by media URI and
// Text is used for anything else.
type StaticTranscriber struct {
	Text  string
	Texts map[string]string
}

const mockTranscript = `[00:00:00] Agent: Thanks for calling, how can I help with your scheduling today?
[00:00:06] Customer: We are struggling with no-shows and the price of our current tool is too expensive.`

func (s StaticTranscriber) Submit(_ context.Context, mediaURI string) (Job, error) {
	return Job{MediaID: mediaURI}, nil
}

func (s StaticTranscriber) Fetch(_ context.Context, job Job) (string, error) {
	if t, ok := s.Texts[job.MediaID]; ok {
		return t, nil
	}
	return s.Text, nil
}

// FromConfig picks the transcriber for the process. USE_MOCK_TRANSCRIBE=true
// forces canned output.
func FromConfig(cfg config.Config, log *logger.Logger) (Transcriber, error) {
	switch {
	case os.Getenv("USE_MOCK_TRANSCRIBE") == "true":
		return StaticTranscriber{Text: mockTranscript}, nil
	case cfg.TranscribeURL != "":
		return NewHTTPClient(cfg.TranscribeURL, WithLogger(log), WithMaxElapsed(cfg.ParsedRetryMaxElapsed())), nil
	case cfg.TranscriptDir != "":
		return DirTranscriber{Dir: cfg.TranscriptDir}, nil
	default:
		return nil, errors.New("no transcriber configured: set transcribe_url or transcript_dir")
	}
}

// Unavailable fails every request. It stands in when no transcriber is
// configured so that records carrying their own transcript still run.
type Unavailable struct{}

func (Unavailable) Submit(context.Context, string) (Job, error) {
	return Job{}, apperrors.New(apperrors.ErrTranscription, "transcription.submit", "no transcriber configured")
}

func (Unavailable) Fetch(context.Context, Job) (string, error) {
	return "", apperrors.New(apperrors.ErrTranscription, "transcription.fetch", "no transcriber configured")
}
