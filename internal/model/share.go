package model

import "time"

// Kind distinguishes file shares from inline text shares.
type Kind string

const (
	KindFile Kind = "file"
	KindText Kind = "text"
)

const (
	TextDisplayName = "Text Message"
	TextContentType = "text/plain"
	TextLocator     = "text-content"
)

// Share is the stored unit of sharing. Pin and InlineText never leave the
// server before a successful verification.
type Share struct {
	ID             string    `db:"id" json:"id"`
	Kind           Kind      `db:"kind" json:"kind"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	SizeBytes      int64     `db:"size_bytes" json:"size_bytes"`
	ContentType    string    `db:"content_type" json:"content_type"`
	StorageLocator string    `db:"storage_locator" json:"-"`
	InlineText     *string   `db:"inline_text" json:"-"`
	Pin            string    `db:"pin" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	DownloadCount  int64     `db:"download_count" json:"download_count"`
}

// Live reports whether the share is still retrievable at now.
func (s *Share) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// IsText reports whether the payload is stored inline.
func (s *Share) IsText() bool {
	return s.Kind == KindText
}

// Text returns the inline payload, or "" for file shares.
func (s *Share) Text() string {
	if s.InlineText == nil {
		return ""
	}
	return *s.InlineText
}

// Public strips everything a consumer must not see before verification.
func (s *Share) Public() PublicShare {
	return PublicShare{
		FileID:       s.ID,
		Kind:         s.Kind,
		OriginalName: s.DisplayName,
		FileSize:     s.SizeBytes,
		ContentType:  s.ContentType,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Descriptor is handed to the producer after a successful share.
type Descriptor struct {
	FileID       string    `json:"fileId"`
	DownloadURL  string    `json:"downloadUrl"`
	PinCode      string    `json:"pinCode"`
	OriginalName string    `json:"originalName,omitempty"`
	FileSize     int64     `json:"fileSize,omitempty"`
	TextContent  string    `json:"textContent,omitempty"`
	IsText       bool      `json:"isText,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	QRPayload    string    `json:"qrPayload"`
	QRCode       string    `json:"qrCode,omitempty"`
}

// PublicShare is what a consumer sees while the PIN prompt is shown.
type PublicShare struct {
	FileID       string    `json:"fileId"`
	Kind         Kind      `json:"kind"`
	OriginalName string    `json:"originalName"`
	FileSize     int64     `json:"fileSize"`
	ContentType  string    `json:"contentType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Grant is returned once a PIN matched on a live share.
type Grant struct {
	FileID       string `json:"fileId"`
	Kind         Kind   `json:"kind"`
	OriginalName string `json:"originalName"`
	FileSize     int64  `json:"fileSize"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
	TextContent  string `json:"textContent,omitempty"`
}
