// Package feeds keeps the per-region forecast RSS feeds: it downloads and
// stores them periodically and turns the stored items into structured daily
// forecasts for the resolver.
package feeds

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Item is one RSS entry.
type Item struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Published   time.Time
}

// Document is a parsed RSS channel.
type Document struct {
	Title     string
	Published time.Time
	Items     []Item
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	PubDate       string    `xml:"pubDate"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parsePubDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseRSS decodes an RSS 2.0 document. Items without a parseable pubDate
// inherit the channel's date.
func ParseRSS(data []byte) (Document, error) {
	var rss rssDocument
	dec := xml.NewDecoder(bytes.NewReader(data))
	// Feeds are sometimes served as windows-1255 or iso-8859-8; the English
	// feeds only use ASCII, so pass other charsets through.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	if err := dec.Decode(&rss); err != nil {
		return Document{}, fmt.Errorf("decode rss: %w", err)
	}

	doc := Document{Title: strings.TrimSpace(rss.Channel.Title)}
	if t, ok := parsePubDate(rss.Channel.PubDate); ok {
		doc.Published = t
	} else if t, ok := parsePubDate(rss.Channel.LastBuildDate); ok {
		doc.Published = t
	}

	for _, it := range rss.Channel.Items {
		item := Item{
			GUID:        strings.TrimSpace(it.GUID),
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Description: strings.TrimSpace(it.Description),
			Published:   doc.Published,
		}
		if t, ok := parsePubDate(it.PubDate); ok {
			item.Published = t
		}
		doc.Items = append(doc.Items, item)
	}
	return doc, nil
}
