package templates

import (
	"fmt"
	"net/url"
	"time"

	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/utils"
)

// Panels of the home page, selected by query parameter.
const (
	PanelNone   = ""
	PanelUpload = "upload"
	PanelText   = "text"
	PanelResult = "result"
)

// PanelFromQuery maps showUpload/showText/showResult onto a panel.
func PanelFromQuery(q url.Values) string {
	switch {
	case q.Get("showResult") == "true":
		return PanelResult
	case q.Get("showUpload") == "true":
		return PanelUpload
	case q.Get("showText") == "true":
		return PanelText
	default:
		return PanelNone
	}
}

// PanelURL is the home page link that opens panel.
func PanelURL(panel string) string {
	switch panel {
	case PanelUpload:
		return "/?showUpload=true"
	case PanelText:
		return "/?showText=true"
	case PanelResult:
		return "/?showResult=true"
	default:
		return "/"
	}
}

func FormatBytes(bytes int64) string {
	return utils.FormatFileSize(bytes)
}

// ExpiresIn renders the time left until expiresAt, rounded down to minutes.
func ExpiresIn(expiresAt, now time.Time) string {
	left := expiresAt.Sub(now)
	if left <= 0 {
		return "expired"
	}
	hours := int(left.Hours())
	minutes := int(left.Minutes()) % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return "less than a minute"
	}
}

// DownloadAction is where the PIN form of a share posts to.
func DownloadAction(id string) string {
	return "/download/" + url.PathEscape(id)
}

type HomeView struct {
	Panel          string
	MaxSize        int64
	RetentionHours int
	// Text is put back into the form after a failed text share.
	Text   string
	Error  string
	Result *model.Descriptor
	Now    time.Time
}

type DownloadView struct {
	ID       string
	NotFound bool
	Share    *model.PublicShare
	Grant    *model.Grant
	Error    string
	Now      time.Time
}

type ReceiveView struct {
	FileID string
	Error  string
}

// copyScript copies the text of the element named by a button's data-copy.
const copyScript = `<script>document.querySelectorAll("[data-copy]").forEach(function(b){b.addEventListener("click",function(){navigator.clipboard.writeText(document.getElementById(b.dataset.copy).textContent);b.textContent="Copied"})})</script>`
