package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// secretEnvVars are the credentials LoadSecrets may fill from Secrets Manager.
var secretEnvVars = []string{
	"GOOGLE_API_KEY",
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
	"ELEVENLABS_API_KEY",
	"DID_API_KEY",
}

// AWSConfig loads the default AWS config for region with OTEL middleware
// attached, so every SDK call shows up as a child span.
func AWSConfig(ctx context.Context, region string) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return awsCfg, nil
}

// SecretsGetter is the part of the Secrets Manager client LoadSecrets uses.
type SecretsGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// LoadSecrets fetches API keys stored under prefix+NAME and sets them as env
// vars. Variables already set in the environment are left alone, and a
// missing secret is logged rather than returned.
func LoadSecrets(ctx context.Context, client SecretsGetter, prefix string, logger *slog.Logger) int {
	loaded := 0
	for _, envVar := range secretEnvVars {
		if os.Getenv(envVar) != "" {
			continue
		}
		secretID := prefix + envVar
		result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: &secretID,
		})
		if err != nil {
			logger.Info("Secret not found", "secret_id", secretID, "error", err)
			continue
		}
		if result.SecretString != nil && *result.SecretString != "" {
			os.Setenv(envVar, *result.SecretString)
			logger.Info("Loaded secret", "secret_id", secretID)
			loaded++
		}
	}
	return loaded
}

// Bootstrap loads the config, optionally pulling missing keys from Secrets
// Manager first, and validates it.
func Bootstrap(ctx context.Context, logger *slog.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.SecretPrefix != "" {
		awsCfg, err := AWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Warn("Failed to load AWS config, skipping Secrets Manager", "error", err)
		} else if LoadSecrets(ctx, secretsmanager.NewFromConfig(awsCfg), cfg.SecretPrefix, logger) > 0 {
			if cfg, err = FromEnv(); err != nil {
				return nil, err
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
