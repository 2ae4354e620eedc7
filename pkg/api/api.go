// Package api defines the wire types of the backend's HTTP surface.
package api

import "time"

// QueryRequest starts one Spectral Resonance Art turn. Lifecycle events for
// the turn are delivered to the socket identified by ChannelId.
type QueryRequest struct {
	SessionId           string `json:"session_id"`
	MessageId           string `json:"message_id"`
	Prompt              string `json:"prompt"`
	AspectRatio         string `json:"aspect_ratio"`
	ArtStyle            string `json:"art_style"`
	ArtStyleDescription string `json:"art_style_description"`
	Email               string `json:"email"`
	ChannelId           string `json:"channel_id"`
}

type QueryResponse struct {
	SessionId string `json:"session_id"`
	MessageId string `json:"message_id"`
	Accepted  bool   `json:"accepted"`
}

type UploadResponse struct {
	UploadId string `json:"upload_id"`
	FileType string `json:"file_type"`
	FileUrl  string `json:"file_url,omitempty"`
}

type HistoryRequest struct {
	SessionId   string `schema:"session_id"`
	WindowHours int    `schema:"window_hours"`
}

type ChatTurn struct {
	SessionId string    `json:"session_id"`
	MessageId string    `json:"message_id"`
	IsUser    bool      `json:"is_user"`
	Message   *string   `json:"message,omitempty"`
	Response  *string   `json:"response,omitempty"`
	ImageUrl  *string   `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Turns []ChatTurn `json:"turns"`
}
