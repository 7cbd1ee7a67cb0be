// Package llm provides an OpenRouter-style chat client for text generation.
//
// The client is used by script drafting to turn a deck outline into a
// narration script. Every call is a single attempt that returns a
// *services.StatusError for non-2xx responses; retries and the fallback model
// live in the caller, under the retry executor.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.GenerateText: send a prompt and receive trimmed text.
// Client.CompleteJSON: send system/user prompts, receive a JSON payload.
// Client.HealthCheck: verify API key and model availability.
package llm
