package youtube

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

// Documented Data API v3 list responses, including fields the client ignores.

const videosListContract = `{
  "kind": "youtube#videoListResponse",
  "etag": "abc",
  "items": [
    {
      "kind": "youtube#video",
      "etag": "def",
      "id": "dQw4w9WgXcQ",
      "snippet": {
        "publishedAt": "2009-10-25T06:57:33Z",
        "channelId": "UCuAXFkgsw1L7xaCfnd5JJOw",
        "title": "Never Gonna Give You Up",
        "channelTitle": "Rick Astley",
        "liveBroadcastContent": "none",
        "thumbnails": {"default": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg", "width": 120, "height": 90}}
      },
      "contentDetails": {
        "duration": "PT3M33S",
        "dimension": "2d",
        "definition": "hd",
        "caption": "false",
        "licensedContent": true,
        "projection": "rectangular"
      }
    },
    {
      "kind": "youtube#video",
      "id": "live0000001",
      "snippet": {"liveBroadcastContent": "upcoming"},
      "contentDetails": {"duration": "P0D"}
    }
  ],
  "pageInfo": {"totalResults": 2, "resultsPerPage": 2}
}`

const searchListContract = `{
  "kind": "youtube#searchListResponse",
  "regionCode": "GB",
  "pageInfo": {"totalResults": 1000000, "resultsPerPage": 2},
  "items": [
    {
      "kind": "youtube#searchResult",
      "id": {"kind": "youtube#video", "videoId": "abc123"},
      "snippet": {
        "publishedAt": "2024-01-15T10:00:00Z",
        "channelId": "UC1",
        "title": "Go Concurrency Patterns",
        "description": "talk",
        "channelTitle": "Gophers",
        "liveBroadcastContent": "none",
        "publishTime": "2024-01-15T10:00:00Z"
      }
    },
    {
      "kind": "youtube#searchResult",
      "id": {"kind": "youtube#channel", "channelId": "UC2"},
      "snippet": {"title": "A channel, not a video"}
    }
  ]
}`

const channelsListContract = `{
  "kind": "youtube#channelListResponse",
  "pageInfo": {"totalResults": 1, "resultsPerPage": 5},
  "items": [
    {
      "kind": "youtube#channel",
      "id": "UCuAXFkgsw1L7xaCfnd5JJOw",
      "snippet": {"title": "Rick Astley", "description": "", "customUrl": "@rickastleyyt", "publishedAt": "2006-09-19T00:00:00Z"}
    }
  ]
}`

func contractClient(t *testing.T) *Client {
	return newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/videos"):
			_, _ = w.Write([]byte(videosListContract))
		case strings.HasSuffix(r.URL.Path, "/search"):
			_, _ = w.Write([]byte(searchListContract))
		case strings.HasSuffix(r.URL.Path, "/channels"):
			_, _ = w.Write([]byte(channelsListContract))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestContract_VideosList(t *testing.T) {
	details, err := contractClient(t).BatchLookup(context.Background(), []string{"dQw4w9WgXcQ", "live0000001"})
	if err != nil {
		t.Fatalf("should parse a documented videos.list response: %v", err)
	}

	if got := details["dQw4w9WgXcQ"]; got.Duration != "PT3M33S" || got.Liveness != LivenessNormal {
		t.Errorf("unexpected details: %+v", got)
	}
	if got := details["live0000001"]; got.Liveness != LivenessUpcoming {
		t.Errorf("upcoming broadcast should map to LivenessUpcoming, got %+v", got)
	}
}

func TestContract_SearchList(t *testing.T) {
	results, err := contractClient(t).Search(context.Background(), "go", 10)
	if err != nil {
		t.Fatalf("should parse a documented search.list response: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("only video results should be returned, got %+v", results)
	}
	want := SearchResult{ID: "abc123", Title: "Go Concurrency Patterns", ChannelID: "UC1", ChannelTitle: "Gophers", Published: "2024-01-15T10:00:00Z"}
	if results[0] != want {
		t.Errorf("got %+v, want %+v", results[0], want)
	}
}

func TestContract_ChannelsList(t *testing.T) {
	names, err := contractClient(t).ResolveChannelNames(context.Background(), []string{"UCuAXFkgsw1L7xaCfnd5JJOw"})
	if err != nil {
		t.Fatalf("should parse a documented channels.list response: %v", err)
	}
	if names["UCuAXFkgsw1L7xaCfnd5JJOw"] != "Rick Astley" {
		t.Errorf("unexpected names: %v", names)
	}
}
