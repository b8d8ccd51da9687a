// Trawl exports analytics projects to CSV files.
//
// It walks a project's experiments and datasets through the paginated
// records API and streams each entity into its own CSV file, surviving
// rate limits and transient failures along the way.
//
// Usage:
//
//	# Export every project reachable with the configured API key
//	trawl export
//
//	# Export one project by id or name
//	trawl export --project my-project
//
//	# Run recurring exports per the configured cron schedule
//	trawl export --daemon
//
//	# List projects visible to the API key
//	trawl projects
//
//	# Inspect past export runs
//	trawl history
package main

func main() {
	Execute()
}
