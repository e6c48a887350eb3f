package guide

// Version is the release version, stamped at build time via
// -ldflags "-X github.com/rluijk/guided-llm-cli.Version=...".
var Version = "dev"
