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


// Package courtlistener fetches judicial opinions from the CourtListener
// REST API (v3) and maps them onto core.Opinion.
//
// Opinions are listed per court and filing date, following the API's next
// links until the requested number of cases is reached. Each opinion's
// cluster supplies the case name, citation and filing date; the court
// record supplies the jurisdiction. Both lookups are cached for the lifetime
// of the Client.
//
// Requests are throttled by a token bucket and a 429 response pauses the
// client for the duration given by its Retry-After header.
package courtlistener
