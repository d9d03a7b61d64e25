package utils

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	PinLength = 6
	pinMin    = 100000
	pinMax    = 999999

	uploadsPrefix = "uploads/"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize converts bytes to human-readable format
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}

	const unit = 1024
	div, exp := int64(1), 0
	for size/div >= unit && exp < len(sizeUnits)-1 {
		div *= unit
		exp++
	}

	value := float64(size) / float64(div)
	return strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64) + " " + sizeUnits[exp]
}

// IsFileSizeValid reports whether size fits under limit (inclusive).
func IsFileSizeValid(size, limit int64) bool {
	return size <= limit
}

// GeneratePin returns a uniformly random PIN in [100000, 999999].
func GeneratePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinMax-pinMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return strconv.FormatInt(n.Int64()+pinMin, 10), nil
}

// IsPin reports whether s is exactly six ASCII digits.
func IsPin(s string) bool {
	if len(s) != PinLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// GenerateID returns a new opaque share locator.
func GenerateID() string {
	return uuid.NewString()
}

// ObjectKey builds the storage key for an uploaded file, keeping its extension.
func ObjectKey(originalName string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if ext == "" {
		return uploadsPrefix + uuid.NewString()
	}
	return uploadsPrefix + uuid.NewString() + "." + ext
}
