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


// Package openai provides the embedding service implementation over OpenAI-style APIs.
//
// This package implements ai.Embedder with the langchaingo library. It talks to
// Azure OpenAI deployments (the default) or to OpenAI and OpenAI-compatible
// servers such as Ollama, LocalAI or vLLM.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("https://my-resource.openai.azure.com"),
//	    ai.WithAPIKey(key),
//	    ai.WithModel("text-embedding-ada-002"), // deployment name
//	)
//
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	vectors, err := embedder.EmbedTexts(ctx, texts)
package openai
