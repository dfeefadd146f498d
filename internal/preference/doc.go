// Package preference stores per-user AR and routing preferences.
//
// Reading preferences for an unknown user creates the defaults. Updates
// merge only the known top-level keys of the posted object.
package preference
