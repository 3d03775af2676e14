// Package setup provides functions for setting up the farm host.
// It verifies and clears the on-disk configuration the CLI expects.
//
// This package is essentially a collection of scripts and constants, and is
// therefore the only package that is allowed to call a global logger.
package setup
