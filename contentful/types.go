// Package contentful talks to the Contentful Delivery and Preview APIs and
// normalizes the returned entry graph into flat, link-resolved Entry values.
package contentful

import (
	"encoding/json"

	"github.com/eringen/folioblog/richtext"
)

// Link types.
const (
	LinkEntry = "Entry"
	LinkAsset = "Asset"
)

// Sys is the system metadata block carried by entries, assets and links.
type Sys struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	LinkType    string `json:"linkType,omitempty"`
	ContentType *Link  `json:"contentType,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Link is a typed reference to an entry or asset delivered in Includes.
type Link struct {
	Sys Sys `json:"sys"`
}

// IsLink reports whether l carries link metadata.
func (l Link) IsLink() bool {
	return l.Sys.Type == "Link"
}

// RawEntry is an entry (or asset) exactly as the API returns it. Field values
// stay undecoded until normalization decides what they are.
type RawEntry struct {
	Sys    Sys                        `json:"sys"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// ContentTypeID returns sys.contentType.sys.id, or "" for assets.
func (r RawEntry) ContentTypeID() string {
	if r.Sys.ContentType == nil {
		return ""
	}
	return r.Sys.ContentType.Sys.ID
}

// Includes is the side table of linked entries and assets returned with a query.
type Includes struct {
	Entry []RawEntry `json:"Entry,omitempty"`
	Asset []RawEntry `json:"Asset,omitempty"`
}

// Asset is a resolved binary resource.
type Asset = richtext.Asset

// EntryList is one page of normalized entries.
type EntryList struct {
	Items []Entry `json:"items"`
	Total int     `json:"total"`
	Skip  int     `json:"skip"`
	Limit int     `json:"limit"`
}

type collectionResponse struct {
	Items    []RawEntry `json:"items"`
	Includes Includes   `json:"includes"`
	Total    int        `json:"total"`
	Skip     int        `json:"skip"`
	Limit    int        `json:"limit"`
}

type entryResponse struct {
	RawEntry
	Includes Includes `json:"includes"`
}

type assetFile struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Details     struct {
		Image *struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"image"`
	} `json:"details"`
}
