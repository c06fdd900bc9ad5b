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

const replicateBaseURL = "https://api.replicate.com/v1"

// ReplicateAdapter drives Replicate's predictions API: create a prediction
// against a model path, then poll its get URL until a terminal status.
type ReplicateAdapter struct {
	apiKey string
	model  *registry.ModelInfo
	client *http.Client
}

func NewReplicateAdapter(apiKey string, model *registry.ModelInfo) *ReplicateAdapter {
	return &ReplicateAdapter{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type replicatePrediction struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Output interface{} `json:"output"`
	Error  string      `json:"error,omitempty"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

type replicateRequest struct {
	Input map[string]interface{} `json:"input"`
}

func (a *ReplicateAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	input := map[string]interface{}{
		"prompt": req.Prompt,
	}
	if req.ImageSize != "" {
		input["size"] = req.ImageSize
	}
	if req.GuidanceScale > 0 {
		input["guidance_scale"] = req.GuidanceScale
	}
	if req.UseReference && len(req.ReferenceImages) > 0 {
		input["image"] = req.ReferenceImages[0]
	}

	return a.run(ctx, input)
}

func (a *ReplicateAdapter) Edit(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if len(req.ReferenceImages) == 0 {
		return nil, fmt.Errorf("edit requires a reference image")
	}

	input := map[string]interface{}{
		"prompt":      req.Prompt,
		"input_image": req.ReferenceImages[0],
	}

	return a.run(ctx, input)
}

func (a *ReplicateAdapter) Upscale(ctx context.Context, imageUrl string, scale int) (*GenerateResult, error) {
	input := map[string]interface{}{
		"image": imageUrl,
		"scale": scale,
	}

	return a.run(ctx, input)
}

func (a *ReplicateAdapter) run(ctx context.Context, input map[string]interface{}) (*GenerateResult, error) {
	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	endpoint := fmt.Sprintf("/models/%s/predictions", a.model.Endpoint)
	body, err := a.doRequest(ctx, http.MethodPost, replicateBaseURL+endpoint, replicateRequest{Input: input})
	if err != nil {
		return nil, err
	}

	var pred replicatePrediction
	if err := json.Unmarshal(body, &pred); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	final, err := a.poll(ctx, &pred)
	if err != nil {
		return nil, err
	}

	urls := outputUrls(final.Output)
	if len(urls) == 0 {
		return nil, ErrNoImages
	}

	result := &GenerateResult{RequestID: final.ID, APIAvailable: true}
	for _, u := range urls {
		result.Images = append(result.Images, GeneratedImage{Url: u})
	}

	return result, nil
}

func (a *ReplicateAdapter) poll(ctx context.Context, pred *replicatePrediction) (*replicatePrediction, error) {
	deadline := time.Now().Add(PollCeiling)

	for time.Now().Before(deadline) {
		body, err := a.doRequest(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return nil, err
		}

		var current replicatePrediction
		if err := json.Unmarshal(body, &current); err != nil {
			return nil, fmt.Errorf("error decoding prediction: %w", err)
		}

		switch current.Status {
		case "succeeded":
			return &current, nil
		case "failed":
			return nil, fmt.Errorf("prediction failed: %s", current.Error)
		case "canceled":
			return nil, fmt.Errorf("prediction was canceled")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(PollInterval):
		}
	}

	return nil, ErrPollTimeout
}

func outputUrls(output interface{}) []string {
	var urls []string
	switch v := output.(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				urls = append(urls, s)
			}
		}
	case string:
		urls = append(urls, v)
	}
	return urls
}

func (a *ReplicateAdapter) doRequest(ctx context.Context, method, url string, data interface{}) ([]byte, error) {
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

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
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
