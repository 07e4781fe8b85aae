// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

/*
Package services adapts Guidepost components to suture.Service.

HTTPServerService turns the blocking ListenAndServe/Shutdown pair into a
context-aware Serve with a bounded drain. ImageStoreGCService runs the image
store's value log GC on a ticker and records each cycle in
guidepost_image_store_gc_runs_total.

Return values drive supervisor behavior:

	nil        stopped cleanly, not restarted
	error      crashed, restarted with backoff
	ctx.Err()  shutdown requested

Both wrappers implement fmt.Stringer so supervisor events name them.
*/
package services
