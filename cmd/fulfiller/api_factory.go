package main

import (
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/fulfiller/internal/api"
	"github.com/ShayCichocki/fulfiller/internal/config"
)

// createCompleter creates the Anthropic completion provider from config.
// Bedrock uses the AWS credential chain, so a missing API key is only an
// error for the direct API.
func createCompleter(cfg *config.Config) (*api.Client, error) {
	apiKey, err := config.GetAPIKey(cfg)
	if err != nil && !(errors.Is(err, config.ErrNoAPIKey) && cfg.Anthropic.UseBedrock) {
		return nil, fmt.Errorf("resolve API key: %w", err)
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        apiKey,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}
