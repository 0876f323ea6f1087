// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt builds the text sent to language models and cleans the
// text they return.
//
// Instructions and details may carry help lines starting with "%"; they are
// stripped before anything is sent. User paragraphs starting with
// "INSTRUCT:" steer the model and are rendered apart from the story.
package prompt
