// Package config handles loading and validating the AVR bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (AVRBRIDGE_*)
//   - Validation of required fields
//   - Default value handling
//
// Configuration is read once at startup; the bridge does not hot-reload it.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Receiver.Address())
package config
