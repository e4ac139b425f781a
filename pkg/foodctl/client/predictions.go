package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

type PredictRequest struct {
	Filename string
	Image    io.Reader
	Language string
}

type Prediction struct {
	FoodName   string    `json:"food_name" yaml:"foodName"`
	Confidence float64   `json:"confidence" yaml:"confidence"`
	FoodInfo   *FoodInfo `json:"food_info,omitempty" yaml:"foodInfo,omitempty"`
	Related    []string  `json:"related,omitempty" yaml:"related,omitempty"`
}

type PredictionService struct {
	client *Client
}

func (c *Client) Predictions() *PredictionService {
	return &PredictionService{client: c}
}

// Predict uploads an image for classification. Anonymous uploads are
// accepted; with a session the server also records the result in history.
func (p *PredictionService) Predict(ctx context.Context, in PredictRequest) (*Prediction, error) {
	if in.Image == nil {
		return nil, errors.New("image is required")
	}
	filename := in.Filename
	if filename == "" {
		filename = "image.jpg"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, in.Image); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if in.Language != "" {
		if err := writer.WriteField("lang", in.Language); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	resp, err := p.client.Send(ctx, &Request{
		Method:      http.MethodPost,
		Path:        "predict",
		Body:        buf.Bytes(),
		ContentType: writer.FormDataContentType(),
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}
	var prediction Prediction
	if err := resp.DecodeJSON(&prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}
