// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements storyrun's offline mode.
//
// In offline mode the story never leaves the machine: hosted providers are
// not registered, models from them cannot be opened, and the Ollama base URL
// must be a loopback address. Offline mode is enabled with --offline,
// general.offline in the config file, or STORYRUN_OFFLINE=1.
package offline
