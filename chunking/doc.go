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


// Package chunking splits opinion text into overlapping token windows.
//
// A Chunker tokenizes an opinion's full text and slides a window of
// WindowSize tokens across it with a stride of WindowSize - Overlap. Every
// window becomes one core.Chunk carrying the opinion's provenance metadata,
// its 0-based position and the total number of chunks of its opinion.
//
// # Tokenizers
//
//   - TiktokenTokenizer: BPE tokens (cl100k_base by default), matching the
//     token accounting of the embedding model
//   - WordTokenizer: whitespace-delimited words; windows are cut from the
//     original text so spacing and line breaks are preserved
//
// # Window arithmetic
//
// For a text of L tokens with window W and overlap O, the number of chunks is
// 1 when L <= W and ceil((L-O)/(W-O)) otherwise. The last window may be shorter
// than W; it is never padded.
//
//	1000 tokens, W=512, O=50  ->  [0,512) [462,974) [924,1000)
package chunking
