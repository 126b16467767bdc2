// Package graph provides a client for the Microsoft Graph v1.0 API.
//
// This package enables vidfeed to:
// - Greet the signed-in user
// - List calendar events
// - Walk OneDrive folders and files
// - Create anonymous sharing links and list existing ones
// - Retrieve thumbnail sets for a file
package graph

import "time"

// User is the signed-in account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Event is a calendar event as selected by ListEvents.
type Event struct {
	Subject   string        `json:"subject"`
	Organizer string        `json:"organizer"`
	Start     EventDateTime `json:"start"`
	End       EventDateTime `json:"end"`
}

// EventDateTime is a wall-clock time paired with the zone it is expressed in.
type EventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// DriveItem is a file or folder in OneDrive.
type DriveItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Size        int64       `json:"size"`
	Description *string     `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"createdDateTime"`
	IsFolder    bool        `json:"isFolder"`
	Video       *VideoFacet `json:"video,omitempty"`
}

// VideoFacet holds the technical metadata OneDrive extracts from video files.
// Duration is in milliseconds.
type VideoFacet struct {
	Duration int64 `json:"duration"`
	Width    int   `json:"width"`
	Height   int   `json:"height"`
}

// Permission is one sharing link on an item.
type Permission struct {
	ID       string `json:"id"`
	LinkType string `json:"linkType"`
	Scope    string `json:"scope"`
	WebURL   string `json:"webUrl"`
}

// ThumbnailSet groups the renditions of one thumbnail.
type ThumbnailSet struct {
	ID     string `json:"id"`
	Large  string `json:"large"`
	Medium string `json:"medium"`
	Small  string `json:"small"`
}
