package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/marianozunino/ezyshare/internal/model"
	"github.com/marianozunino/ezyshare/internal/qr"
	"github.com/marianozunino/ezyshare/internal/utils"
)

// sniffLen is how much of a payload is read to detect its content type.
const sniffLen = 3072

type ProducerState int

const (
	Idle ProducerState = iota
	PayloadSelected
	Uploading
	Ready
	Failed
)

func (s ProducerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case PayloadSelected:
		return "payload selected"
	case Uploading:
		return "uploading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("ProducerState(%d)", int(s))
	}
}

// Opener returns a fresh reader over a file payload. It may be called again
// when an upload is retried.
type Opener func() (io.ReadCloser, error)

// BytesOpener serves data from memory.
func BytesOpener(data []byte) Opener {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// Payload is what the producer selected.
type Payload struct {
	Kind        model.Kind
	Name        string
	Size        int64
	ContentType string
	Text        string
	open        Opener
}

// Producer drives one share from selection to a ready descriptor. A failed
// upload keeps the payload so Submit can be called again.
type Producer struct {
	svc        *Service
	state      ProducerState
	payload    *Payload
	descriptor *model.Descriptor
}

func (p *Producer) State() ProducerState { return p.state }

// Payload returns the current selection, or nil.
func (p *Producer) Payload() *Payload { return p.payload }

// Descriptor returns the result once the producer is Ready.
func (p *Producer) Descriptor() *model.Descriptor { return p.descriptor }

func (p *Producer) canSelect() error {
	switch p.state {
	case Idle, PayloadSelected, Failed:
		return nil
	default:
		return &errInvalidState{op: "selecting a payload", state: p.state.String()}
	}
}

// SelectFile picks a file payload. Files above the size limit are rejected
// here and never reach the backend.
func (p *Producer) SelectFile(name string, size int64, contentType string, open Opener) error {
	if err := p.canSelect(); err != nil {
		return err
	}
	if open == nil || strings.TrimSpace(name) == "" {
		return ErrEmptyInput
	}
	if !utils.IsFileSizeValid(size, p.svc.maxSize) {
		shareFailures.WithLabelValues("size_exceeded").Inc()
		return fmt.Errorf("%w: %s is larger than %s", ErrSizeExceeded,
			utils.FormatFileSize(size), utils.FormatFileSize(p.svc.maxSize))
	}

	p.payload = &Payload{
		Kind:        model.KindFile,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		open:        open,
	}
	p.state = PayloadSelected
	return nil
}

// SelectText picks a text payload. Blank text is rejected.
func (p *Producer) SelectText(text string) error {
	if err := p.canSelect(); err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		shareFailures.WithLabelValues("empty_input").Inc()
		return ErrEmptyInput
	}
	size := int64(len(text))
	if !utils.IsFileSizeValid(size, p.svc.maxSize) {
		shareFailures.WithLabelValues("size_exceeded").Inc()
		return ErrSizeExceeded
	}

	p.payload = &Payload{
		Kind:        model.KindText,
		Name:        model.TextDisplayName,
		Size:        size,
		ContentType: model.TextContentType,
		Text:        text,
	}
	p.state = PayloadSelected
	return nil
}

// Submit stores the selected payload and returns its descriptor. On failure
// the producer ends in Failed with the payload kept for a retry.
func (p *Producer) Submit(ctx context.Context) (*model.Descriptor, error) {
	if p.state != PayloadSelected && p.state != Failed {
		return nil, &errInvalidState{op: "submit", state: p.state.String()}
	}
	p.state = Uploading

	desc, err := p.upload(ctx)
	if err != nil {
		p.state = Failed
		return nil, err
	}

	p.state = Ready
	p.descriptor = desc
	return desc, nil
}

// Reset drops the selection and returns to Idle.
func (p *Producer) Reset() {
	p.state = Idle
	p.payload = nil
	p.descriptor = nil
}

func (p *Producer) upload(ctx context.Context) (*model.Descriptor, error) {
	pl := p.payload

	pin, err := utils.GeneratePin()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	now := p.svc.backend.Now()

	share := &model.Share{
		ID:          utils.GenerateID(),
		Kind:        pl.Kind,
		DisplayName: pl.Name,
		SizeBytes:   pl.Size,
		ContentType: pl.ContentType,
		Pin:         pin,
		CreatedAt:   now,
		ExpiresAt:   now.Add(p.svc.retention),
	}

	var body io.Reader
	if pl.Kind == model.KindText {
		text := pl.Text
		share.StorageLocator = model.TextLocator
		share.InlineText = &text
	} else {
		rc, err := pl.open()
		if err != nil {
			shareFailures.WithLabelValues("upload_failed").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		defer rc.Close()

		body, share.ContentType, err = sniffContentType(rc, pl.ContentType)
		if err != nil {
			shareFailures.WithLabelValues("upload_failed").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
		share.StorageLocator = utils.ObjectKey(pl.Name)
	}

	if err := p.svc.backend.Store(ctx, share, body); err != nil {
		reason := "upload_failed"
		switch {
		case errors.Is(err, ErrStorageFailure):
			reason = "storage_failure"
		case errors.Is(err, ErrMetadataFailure):
			reason = "metadata_failure"
		}
		shareFailures.WithLabelValues(reason).Inc()
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	sharesCreated.WithLabelValues(string(share.Kind)).Inc()
	return p.svc.describe(share), nil
}

// sniffContentType keeps a specific declared type and otherwise detects one
// from the first bytes of r. The returned reader replays those bytes.
func sniffContentType(r io.Reader, declared string) (io.Reader, string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, "", err
	}
	buf = buf[:n]
	body := io.MultiReader(bytes.NewReader(buf), r)

	if declared != "" && declared != "application/octet-stream" {
		return body, declared, nil
	}
	return body, mimetype.Detect(buf).String(), nil
}

// describe builds the producer handoff for a stored share.
func (s *Service) describe(share *model.Share) *model.Descriptor {
	shareURL := ShareURL(s.baseURL, share.ID)
	desc := &model.Descriptor{
		FileID:       share.ID,
		DownloadURL:  shareURL,
		PinCode:      share.Pin,
		OriginalName: share.DisplayName,
		FileSize:     share.SizeBytes,
		IsText:       share.IsText(),
		TextContent:  share.Text(),
		ExpiresAt:    share.ExpiresAt,
		QRPayload:    qr.Payload(shareURL, share.Pin),
	}

	code, err := qr.DataURI(desc.QRPayload, qr.DefaultSize)
	if err != nil {
		slog.Warn("failed to render qr code", "id", share.ID, "error", err)
	} else {
		desc.QRCode = code
	}
	return desc
}
