package consteval

// Version is the library version reported by the CLI.
const Version = "0.4.1"

// BuildDate is stamped by the release build via -ldflags.
var BuildDate = "unknown"
