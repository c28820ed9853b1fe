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


// Package config loads caseingest settings from an optional TOML file.
//
// Values are resolved as defaults, then the file, then command-line flags
// and environment variables applied by the caller.
//
//	[courtlistener]
//	token = "..."
//	requests_per_second = 1.0
//
//	[embedding]
//	api_type = "azure"
//	host = "https://my-resource.openai.azure.com"
//	model = "text-embedding-ada-002"
//
//	[index]
//	backend = "azure"
//	endpoint = "https://my-search.search.windows.net"
//	name = "legal-cases-index"
//
//	[chunking]
//	window_size = 512
//	overlap = 50
package config
