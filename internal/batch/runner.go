package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultMaxPolls      = 150
	defaultSubmitRetries = 3

	submitRetryPause = time.Second
)

// Item — один файл в очереди на конвертацию.
type Item struct {
	Path         string
	OutputFormat string
}

// Result — итог обработки одного файла.
type Result struct {
	Path        string
	JobID       string
	Status      string
	DownloadURL string
	Err         error
	Attempts    int
}

// Runner последовательно отправляет файлы на сервер и опрашивает задачи
// до терминального статуса. Без конкурентности: один файл в работе.
type Runner struct {
	BaseURL       string
	Endpoint      string // например /api/audio/convert/
	HTTPClient    *http.Client
	PollInterval  time.Duration
	MaxPolls      int
	SubmitRetries int
	Logf          func(format string, args ...any)
}

type jobResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	DownloadURL  string `json:"download_url"`
}

func (r *Runner) Run(ctx context.Context, items []Item) []Result {
	r.fillDefaults()

	results := make([]Result, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Path: item.Path, Err: err})
			continue
		}
		results = append(results, r.runOne(ctx, item))
	}
	return results
}

func (r *Runner) fillDefaults() {
	if r.HTTPClient == nil {
		r.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if r.PollInterval <= 0 {
		r.PollInterval = defaultPollInterval
	}
	if r.MaxPolls <= 0 {
		r.MaxPolls = defaultMaxPolls
	}
	if r.SubmitRetries <= 0 {
		r.SubmitRetries = defaultSubmitRetries
	}
	if r.Logf == nil {
		r.Logf = func(string, ...any) {}
	}
}

func (r *Runner) runOne(ctx context.Context, item Item) Result {
	res := Result{Path: item.Path}

	var job *jobResponse
	var lastErr error
	for attempt := 1; attempt <= r.SubmitRetries; attempt++ {
		res.Attempts = attempt
		job, lastErr = r.submit(ctx, item)
		if lastErr == nil {
			break
		}
		r.Logf("submit %s (attempt %d/%d): %v", item.Path, attempt, r.SubmitRetries, lastErr)
		if attempt < r.SubmitRetries {
			select {
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			case <-time.After(submitRetryPause):
			}
		}
	}
	if lastErr != nil {
		res.Err = lastErr
		return res
	}

	res.JobID = job.ID
	if terminal(job.Status) {
		return r.resolve(res, job)
	}

	// сервер в async-режиме: опрашиваем до терминального статуса
	for poll := 1; poll <= r.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return res
		case <-time.After(r.PollInterval):
		}

		job, lastErr = r.getJob(ctx, res.JobID)
		if lastErr != nil {
			r.Logf("poll %s (%d/%d): %v", res.JobID, poll, r.MaxPolls, lastErr)
			continue
		}
		if terminal(job.Status) {
			return r.resolve(res, job)
		}
	}

	if lastErr != nil {
		res.Err = lastErr
	} else {
		res.Err = fmt.Errorf("timed out waiting for job %s after %d polls", res.JobID, r.MaxPolls)
	}
	return res
}

func (r *Runner) resolve(res Result, job *jobResponse) Result {
	res.Status = job.Status
	res.DownloadURL = job.DownloadURL
	if job.Status == "failed" {
		msg := job.ErrorMessage
		if msg == "" {
			msg = "conversion failed"
		}
		res.Err = fmt.Errorf("%s", msg)
	}
	return res
}

func terminal(status string) bool {
	return status == "completed" || status == "failed"
}

func (r *Runner) submit(ctx context.Context, item Item) (*jobResponse, error) {
	f, err := os.Open(item.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(item.Path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("output_format", item.OutputFormat); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+r.Endpoint, pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var job jobResponse
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("server response has no job id")
	}
	return &job, nil
}

func (r *Runner) getJob(ctx context.Context, id string) (*jobResponse, error) {
	url := fmt.Sprintf("%s/api/core/jobs/%s/", r.BaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job status %d: %s", resp.StatusCode, string(body))
	}

	var job jobResponse
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode job response: %w", err)
	}
	return &job, nil
}
