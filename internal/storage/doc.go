// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists story snapshots.
//
// Two backends implement Store: JSONStore keeps one file per story and
// SQLiteStore keeps every story in a single database. Both round-trip every
// turn field exactly, including role and token count.
//
// # Usage
//
//	store, err := storage.Open(storage.BackendJSON, dataDir)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Save(sess.Snapshot())
//	snap, err := store.Load(id)
//	if errors.Is(err, storage.ErrStoryNotFound) {
//	    // start a new story
//	}
package storage
