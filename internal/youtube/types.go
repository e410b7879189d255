// Package youtube provides a client for the YouTube Data API v3.
//
// This package enables subfeed to:
// - Look up duration and live status for batches of videos
// - Resolve channel display names and channel links to channel ids
// - Search for videos
//
// Free-form API values such as liveBroadcastContent never leave this package;
// they are mapped into Liveness at the boundary.
package youtube

// VideoDetails is the enrichment data for one video.
type VideoDetails struct {
	Duration string   `json:"duration"` // ISO 8601, e.g. PT10M30S
	Liveness Liveness `json:"liveness"`
}

// SearchResult is one video returned by a search query.
type SearchResult struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title"`
	Published    string `json:"published"`
}

// VideoURL returns the watch URL for a video id.
func VideoURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
