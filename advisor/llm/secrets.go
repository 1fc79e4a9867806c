// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsClient is the subset of the Secrets Manager API the resolver
// needs. It exists so tests can substitute a fake.
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// KeyResolver turns a provider credential reference into an API key.
// References of the form "arn:aws:secretsmanager:..." are fetched from AWS
// Secrets Manager; anything else is treated as a literal key.
type KeyResolver struct {
	client SecretsClient
}

// NewKeyResolver creates a resolver backed by AWS Secrets Manager using the
// default credential chain.
func NewKeyResolver(ctx context.Context, region string) (*KeyResolver, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &KeyResolver{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// NewKeyResolverWithClient creates a resolver with an explicit client.
func NewKeyResolverWithClient(client SecretsClient) *KeyResolver {
	return &KeyResolver{client: client}
}

// Resolve returns the API key for a credential reference.
func (r *KeyResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if !strings.HasPrefix(ref, "arn:aws:secretsmanager:") {
		return ref, nil
	}
	if r == nil || r.client == nil {
		return "", fmt.Errorf("secret reference %q requires a secrets manager client", ref)
	}

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("fetching secret %q: %w", ref, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", ref)
	}
	return *out.SecretString, nil
}
