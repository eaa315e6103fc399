// Package cmd implements the command-line interface of feval. It provides a
// hierarchical command structure for running the evaluation server and
// talking to it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the evaluation server
//   - eval: Evaluates statements once or in a prompt, and benchmarks a server (eval bench)
//   - keys: Generates the RSA key pair used by the handshake
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an environment variable FEVAL_<FLAG>, dashes
// replaced by underscores (e.g. FEVAL_LOG_LEVEL=debug). .env and .env.local in
// the working directory are loaded first.
//
// See feval -help for a list of all commands.
package cmd
