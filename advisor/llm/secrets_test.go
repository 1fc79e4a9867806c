// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	values map[string]string
	err    error
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(params.SecretId)]
	if !ok {
		return nil, errors.New("secret not found")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestResolveLiteralKeyPassesThrough(t *testing.T) {
	r := NewKeyResolverWithClient(&fakeSecrets{})

	key, err := r.Resolve(context.Background(), "sk-literal")
	require.NoError(t, err)
	assert.Equal(t, "sk-literal", key)
}

func TestResolveSecretARN(t *testing.T) {
	arn := "arn:aws:secretsmanager:us-east-1:123456789012:secret:anthropic-key"
	r := NewKeyResolverWithClient(&fakeSecrets{values: map[string]string{arn: "sk-from-secrets"}})

	key, err := r.Resolve(context.Background(), arn)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-secrets", key)
}

func TestResolveSecretFailure(t *testing.T) {
	r := NewKeyResolverWithClient(&fakeSecrets{err: errors.New("access denied")})

	_, err := r.Resolve(context.Background(), "arn:aws:secretsmanager:us-east-1:1:secret:x")
	assert.Error(t, err)
}

func TestResolveARNWithoutClient(t *testing.T) {
	var r *KeyResolver

	key, err := r.Resolve(context.Background(), "plain-key")
	require.NoError(t, err)
	assert.Equal(t, "plain-key", key)

	_, err = r.Resolve(context.Background(), "arn:aws:secretsmanager:us-east-1:1:secret:x")
	assert.Error(t, err)
}
