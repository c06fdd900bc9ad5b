package adapters

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/framelight/previz-server/internal/registry"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIImageAdapter serves GPT image models. Generation returns base64
// payloads rather than hosted URLs; edits need the reference image as a
// local file, so remote references are pulled down first.
type OpenAIImageAdapter struct {
	client *openai.Client
	model  *registry.ModelInfo
	http   *http.Client
	apiKey string
}

func NewOpenAIImageAdapter(apiKey string, model *registry.ModelInfo) *OpenAIImageAdapter {
	return &OpenAIImageAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
		http:   &http.Client{Timeout: 60 * time.Second},
		apiKey: apiKey,
	}
}

func (a *OpenAIImageAdapter) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if req.UseReference && len(req.ReferenceImages) > 0 {
		return a.Edit(ctx, req)
	}

	n := req.NumImages
	if n <= 0 {
		n = 1
	}

	resp, err := a.client.CreateImage(ctx, openai.ImageRequest{
		Prompt: req.Prompt,
		Model:  a.model.Endpoint,
		N:      n,
		Size:   imageSize(req.ImageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("openai image request failed: %w", err)
	}

	return decodeImageResponse(resp)
}

func (a *OpenAIImageAdapter) Edit(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if a.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if len(req.ReferenceImages) == 0 {
		return nil, fmt.Errorf("edit requires a reference image")
	}

	file, cleanup, err := a.resolveReference(ctx, req.ReferenceImages[0])
	if err != nil {
		return nil, err
	}
	defer cleanup()

	resp, err := a.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:  file,
		Prompt: req.Prompt,
		Model:  a.model.Endpoint,
		N:      1,
		Size:   imageSize(req.ImageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("openai image edit failed: %w", err)
	}

	return decodeImageResponse(resp)
}

func (a *OpenAIImageAdapter) Upscale(ctx context.Context, imageUrl string, scale int) (*GenerateResult, error) {
	return nil, fmt.Errorf("model %q does not upscale", a.model.ID)
}

// resolveReference turns a reference into an *os.File: local paths open
// directly, URLs download into a temp file first.
func (a *OpenAIImageAdapter) resolveReference(ctx context.Context, reference string) (*os.File, func(), error) {
	if _, err := os.Stat(reference); err == nil {
		file, err := os.Open(reference)
		if err != nil {
			return nil, nil, err
		}
		return file, func() { file.Close() }, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("error downloading reference image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("error downloading reference image (status %d)", resp.StatusCode)
	}

	ext := filepath.Ext(reference)
	if ext == "" {
		ext = ".png"
	}

	tmp, err := os.CreateTemp("", "previz-ref-*"+ext)
	if err != nil {
		return nil, nil, err
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, nil, fmt.Errorf("error saving reference image: %w", err)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, nil, err
	}

	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	return tmp, cleanup, nil
}

func decodeImageResponse(resp openai.ImageResponse) (*GenerateResult, error) {
	if len(resp.Data) == 0 {
		return nil, ErrNoImages
	}

	result := &GenerateResult{APIAvailable: true}
	for _, item := range resp.Data {
		img := GeneratedImage{Url: item.URL}
		if item.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(item.B64JSON)
			if err != nil {
				return nil, fmt.Errorf("error decoding image payload: %w", err)
			}
			img.Data = data
		}
		result.Images = append(result.Images, img)
	}

	return result, nil
}

func imageSize(size string) string {
	if size == "" {
		return "1024x1024"
	}
	return size
}
