// Package configs provides embedded configuration templates for grantscout.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//
// The templates are used by:
//   - cmd/grantscout/cmd/config.go → creates user config at ~/.config/grantscout/config.yaml
//   - cmd/grantscout/cmd/ingest.go → writes .grantscout.yaml next to a fresh index
//
// Template files:
//   - project-config.example.yaml: Corpus-specific settings (search tunables, ingest)
//   - user-config.example.yaml: Machine-specific settings (embedding endpoint, logging)
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//   1. Hardcoded defaults (internal/config/config.go NewConfig())
//   2. User config (~/.config/grantscout/config.yaml)
//   3. Project config (.grantscout.yaml)
//   4. Environment variables (GRANTSCOUT_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by: `grantscout config init` at ~/.config/grantscout/config.yaml
// Contains: Machine-specific settings like the embedding endpoint and API key env var.
// Use case: Settings that apply to all corpora on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created by: `grantscout ingest --write-config` at .grantscout.yaml next to the corpus
// Contains: Corpus-specific settings like search tunables and ingest workers.
// Use case: Settings that are version-controlled with the corpus.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
