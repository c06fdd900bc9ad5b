package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/framelight/previz-server/internal/registry"
)

const falQueueBaseURL = "https://queue.fal.run"

// FalAdapter drives fal.ai queue endpoints: submit a job, then poll the
// status URL until the job completes or the ceiling elapses.
type FalAdapter struct {
	apiKey string
	model  *registry.ModelInfo
	client *http.Client
}

func NewFalAdapter(apiKey string, model *registry.ModelInfo) *FalAdapter {
	return &FalAdapter{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type falQueueStatus struct {
	RequestID   string `json:"request_id"`
	Status      string `json:"status"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type falResponse struct {
	Images []struct {
		Url    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
}

func (a *FalAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	input := map[string]any{
		"prompt": req.Prompt,
	}
	if req.NumImages > 0 {
		input["num_images"] = req.NumImages
	}
	if req.ImageSize != "" {
		input["image_size"] = req.ImageSize
	}
	if req.NumSteps > 0 {
		input["num_inference_steps"] = req.NumSteps
	}
	if req.GuidanceScale > 0 {
		input["guidance_scale"] = req.GuidanceScale
	}

	endpoint := a.model.Endpoint
	if req.UseReference && len(req.ReferenceImages) > 0 {
		input["image_url"] = req.ReferenceImages[0]
		endpoint = endpoint + "/image-to-image"
	}

	return a.submitAndPoll(ctx, endpoint, input)
}

func (a *FalAdapter) Edit(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if len(req.ReferenceImages) == 0 {
		return nil, fmt.Errorf("edit requires a reference image")
	}

	input := map[string]any{
		"prompt":    req.Prompt,
		"image_url": req.ReferenceImages[0],
	}
	if req.GuidanceScale > 0 {
		input["guidance_scale"] = req.GuidanceScale
	}

	return a.submitAndPoll(ctx, a.model.Endpoint+"/image-to-image", input)
}

func (a *FalAdapter) Upscale(ctx context.Context, imageUrl string, scale int) (*GenerateResult, error) {
	return nil, fmt.Errorf("model %q does not upscale", a.model.ID)
}

func (a *FalAdapter) submitAndPoll(ctx context.Context, endpoint string, input map[string]any) (*GenerateResult, error) {
	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := a.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/%s", falQueueBaseURL, endpoint), input)
	if err != nil {
		return nil, err
	}

	var queued falQueueStatus
	if err := json.Unmarshal(body, &queued); err != nil {
		return nil, fmt.Errorf("error decoding queue response: %w", err)
	}

	status, err := a.poll(ctx, queued)
	if err != nil {
		return nil, err
	}

	body, err = a.doRequest(ctx, http.MethodGet, status.ResponseURL, nil)
	if err != nil {
		return nil, err
	}

	var resp falResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	if len(resp.Images) == 0 {
		return nil, ErrNoImages
	}

	result := &GenerateResult{RequestID: queued.RequestID, APIAvailable: true}
	for _, img := range resp.Images {
		result.Images = append(result.Images, GeneratedImage{
			Url:    img.Url,
			Width:  img.Width,
			Height: img.Height,
		})
	}

	return result, nil
}

func (a *FalAdapter) poll(ctx context.Context, queued falQueueStatus) (*falQueueStatus, error) {
	deadline := time.Now().Add(PollCeiling)

	for time.Now().Before(deadline) {
		body, err := a.doRequest(ctx, http.MethodGet, queued.StatusURL, nil)
		if err != nil {
			return nil, err
		}

		var status falQueueStatus
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, fmt.Errorf("error decoding status: %w", err)
		}

		switch status.Status {
		case "COMPLETED":
			if status.ResponseURL == "" {
				status.ResponseURL = queued.ResponseURL
			}
			return &status, nil
		case "FAILED":
			return nil, fmt.Errorf("fal request %s failed", queued.RequestID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}

	return nil, ErrPollTimeout
}

func (a *FalAdapter) doRequest(ctx context.Context, method, url string, data any) ([]byte, error) {
	var requestBody io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, body)
	}

	return body, nil
}
