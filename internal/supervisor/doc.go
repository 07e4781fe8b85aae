// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

/*
Package supervisor runs the long-lived parts of a Guidepost server under a
suture v4 tree.

	RootSupervisor ("guidepost")
	├── DataSupervisor ("data-layer")
	│   └── ImageStoreGCService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Supervisor events are logged
through sutureslog, which the server wires to the zerolog-backed slog
adapter from internal/logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFrom(cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewImageStoreGCService(store, cfg.Metadata.GCInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)

Per-request pipeline work is not supervised here. Requests run on the HTTP
server's goroutines and end with their request context.
*/
package supervisor
