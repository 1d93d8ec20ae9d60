package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

const documentTextDetection = "DOCUMENT_TEXT_DETECTION"

// VisionOCR recognises text through the Cloud Vision annotate endpoint.
type VisionOCR struct {
	service       *vision.Service
	languageHints []string
}

// NewVisionOCR builds an OCR engine backed by Cloud Vision.
func NewVisionOCR(ctx context.Context, languageHints []string, opts ...option.ClientOption) (*VisionOCR, error) {
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("extract: create vision service: %w", err)
	}
	return &VisionOCR{service: svc, languageHints: append([]string(nil), languageHints...)}, nil
}

// Recognize implements OCR.
func (v *VisionOCR) Recognize(ctx context.Context, image []byte) (string, error) {
	if v == nil || v.service == nil {
		return "", ErrOCRUnavailable
	}
	request := &vision.AnnotateImageRequest{
		Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(image)},
		Features: []*vision.Feature{{Type: documentTextDetection}},
	}
	if len(v.languageHints) > 0 {
		request.ImageContext = &vision.ImageContext{LanguageHints: v.languageHints}
	}
	resp, err := v.service.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{request},
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}
	annotation := resp.Responses[0]
	if annotation.Error != nil && annotation.Error.Message != "" {
		return "", errors.New(annotation.Error.Message)
	}
	if annotation.FullTextAnnotation != nil {
		return annotation.FullTextAnnotation.Text, nil
	}
	if len(annotation.TextAnnotations) > 0 && annotation.TextAnnotations[0] != nil {
		return annotation.TextAnnotations[0].Description, nil
	}
	return "", nil
}
