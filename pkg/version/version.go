package version

// Version is the application version reported by the API and User-Agent.
const Version = "v0.4.0"
