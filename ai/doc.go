// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides abstractions for the embedding service used by caseingest.
//
// The package defines the Embedder interface the ingestion pipeline depends on,
// so chunk batching and retry logic can be exercised without any remote service.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation over Azure OpenAI or OpenAI-compatible APIs
//   - ai/mock: Test double for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public production constructors (openai.NewEmbedder) return the ai.Embedder
// INTERFACE to prevent accidental coupling to a concrete implementation.
//
//	embedder, err := openai.NewEmbedder(config)  // returns ai.Embedder
//
// Test utility constructors (mock.NewMockEmbedder) return CONCRETE types so tests
// can inject behavior and assert on call counts.
//
//	mockEmbed := mock.NewMockEmbedder()  // returns *mock.MockEmbedder
//	mockEmbed.EmbedTextsFunc = ...
//	count := mockEmbed.CallCount()
//
// # Usage Example
//
//	config := ai.NewConfig(
//	    ai.WithHost(os.Getenv("AZURE_OPENAI_ENDPOINT")),
//	    ai.WithAPIKey(os.Getenv("AZURE_OPENAI_API_KEY")),
//	)
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, []string{"The judgment is affirmed."})
package ai
