// Copyright 2025 Strategos
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the Strategos advisory service.
//
// advisord turns free-text strategic queries into vetted decision
// proposals: it routes generation across multiple LLM providers with
// health-based failover, runs the five-stage advisory pipeline, and
// gates low-confidence or high-risk proposals behind a human approval
// workflow with a durable audit trail.
//
// Usage:
//
//	./advisord -config config.yaml
//
// Environment Variables:
//
//	ADVISOR_LISTEN_ADDR  - HTTP listen address (overrides config)
//	ADVISOR_JWT_SECRET   - signing secret for approval endpoints
//	ADVISOR_REDIS_ADDR   - Redis address for approval/memory stores
//	ADVISOR_DATABASE_URL - PostgreSQL connection string for the audit trail
//	ANTHROPIC_API_KEY    - Anthropic API key (optional)
//	OPENAI_API_KEY       - OpenAI API key (optional)
package main

import (
	"flag"
	"log"

	"strategos/core/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	if err := server.Run(*configPath); err != nil {
		log.Fatalf("advisord: %v", err)
	}
}
