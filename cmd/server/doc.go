// Guidepost - Landmark Identification and Multilingual Narration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/guidepost

/*
Command guidepost serves the landmark narration API.

A visitor uploads a photo; the server identifies the landmark, looks it up in
a search index of attractions, has a language model write a short narrative,
translates it into the requested language and synthesizes it as speech.

# Commands

	guidepost serve                  run the HTTP API
	guidepost seed-images FILE.yaml  import attraction image metadata
	guidepost check                  probe every collaborator, exit 1 on failure

All commands accept --config to name a YAML file explicitly.

# Process Tree

serve runs under a suture v4 supervisor:

	RootSupervisor ("guidepost")
	├── DataSupervisor ("data-layer")
	│   └── image-store-gc
	└── APISupervisor ("api-layer")
	    └── http-server

SIGINT and SIGTERM cancel the tree. The HTTP server then drains for
SHUTDOWN_TIMEOUT before the image store is closed.

# Configuration

Koanf layers, highest priority last: defaults, .env, config file, environment.

	PORT=3000
	LOG_LEVEL=info                  trace, debug, info, warn, error
	LOG_FORMAT=json                 json or console
	CORS_ORIGINS=*
	AZURE_VISION_ENDPOINT, AZURE_VISION_KEY
	AZURE_SEARCH_ENDPOINT, AZURE_SEARCH_INDEX, AZURE_SEARCH_KEY
	AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_KEY, AZURE_OPENAI_DEPLOYMENT
	AZURE_TRANSLATION_KEY, AZURE_TRANSLATION_REGION
	AZURE_SPEECH_KEY, AZURE_SPEECH_REGION
	METADATA_PATH=./data/metadata
	DEFAULT_LANGUAGE=zh
	CONFIDENCE_THRESHOLD=2.0

seed-images skips the collaborator credential checks; it only touches the
image store.
*/
package main
