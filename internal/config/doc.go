// Package config provides configuration management for tcg-dataset.
//
// This package handles:
//   - Default configuration values
//   - Loading overrides from a YAML file, TCG_* environment variables and
//     command-line flags (in increasing order of precedence)
//   - Validation of the resulting Settings
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Scryfall "all cards" catalog, 224x312 JPEGs under ./tcg-data
//	// one worker per CPU, augmentation disabled
//
// # Loading
//
//	settings, err := config.Load("config/tcg.yaml", flags)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Environment variables use the TCG prefix and underscores for nesting,
// e.g. TCG_IMAGE_WIDTH=256 or TCG_AUGMENT_ENABLED=true.
//
// # Saving
//
//	err := settings.Save("config/tcg.yaml")
package config
