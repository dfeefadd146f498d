// Package config handles loading and validating CityWalk Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with CITYWALK_* environment variables
//   - Validation of required fields and provider selection
//   - Default value handling
//
// Secrets (JWT secret, AMap key, recognizer token, broker credentials)
// should be supplied via environment variables rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Campus.Name)
package config
