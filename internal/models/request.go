// Package models - API request types and validation.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// MaxBatchSize caps the number of prompts accepted in one batch call.
const MaxBatchSize = 20

// GenerateRequest is the body of a single generation call.
type GenerateRequest struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Model        string   `json:"model,omitempty"`       // Overrides the active model for this call
	Temperature  *float64 `json:"temperature,omitempty"` // 0.0 to 2.0
	MaxTokens    *int     `json:"max_tokens,omitempty"`
}

// Validate checks the request for structural problems before any flow
// control is consumed.
func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", *r.Temperature)
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", *r.MaxTokens)
	}
	return nil
}

// BatchGenerateRequest is the body of a batch generation call. Prompts are
// processed in order and results keep positional correspondence.
type BatchGenerateRequest struct {
	Prompts      []string `json:"prompts"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
}

func (r *BatchGenerateRequest) Validate() error {
	if len(r.Prompts) == 0 {
		return errors.New("at least one prompt is required")
	}
	if len(r.Prompts) > MaxBatchSize {
		return fmt.Errorf("batch size %d exceeds maximum of %d", len(r.Prompts), MaxBatchSize)
	}
	for i, p := range r.Prompts {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("prompt at index %d is empty", i)
		}
	}
	return nil
}

// SwitchModelRequest selects the active model for subsequent calls.
type SwitchModelRequest struct {
	Model string `json:"model"`
}

func (r *SwitchModelRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return errors.New("model is required")
	}
	return nil
}

// RotateKeyRequest replaces the provider API key at runtime.
type RotateKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (r *RotateKeyRequest) Validate() error {
	if strings.TrimSpace(r.APIKey) == "" {
		return errors.New("api_key is required")
	}
	return nil
}
