package validator

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
)

var AllowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".docx": true,
}

// Validator validates document uploads and inbound message requests
type Validator struct {
	cfg config.FileUploadConfig
}

func NewFileValidator(cfg config.FileUploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateDocumentFile checks the extension and size of an uploaded document
func (v *Validator) ValidateDocumentFile(filename string, size int64) error {
	if filename == "" {
		return fmt.Errorf("%w: file", entity.ErrMissingField)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := AllowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %s (allowed: txt, md, docx)", entity.ErrInvalidExtension, ext)
	}

	if size <= 0 {
		return fmt.Errorf("%w: file '%s' is empty", entity.ErrInvalidFile, filename)
	}
	if size > v.cfg.MaxFileSize {
		return fmt.Errorf("%w: file '%s' is %d bytes (max %d)", entity.ErrFileTooLarge, filename, size, v.cfg.MaxFileSize)
	}

	return nil
}

// MaxUploadSize bounds a whole multipart request body
func (v *Validator) MaxUploadSize() int64 {
	return v.cfg.MaxUploadSize
}

// ValidateMessage validates a channel gateway message and defaults its kind to text
func (v *Validator) ValidateMessage(req *entity.MessageRequest) error {
	if strings.TrimSpace(req.SenderID) == "" {
		return fmt.Errorf("%w: sender_id", entity.ErrMissingField)
	}

	if req.Kind == "" {
		req.Kind = entity.MessageKindText
	}
	if err := req.Kind.Validate(); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrInvalidParameter, err)
	}
	if req.Kind == entity.MessageKindVoice {
		return fmt.Errorf("%w: voice messages must be sent as multipart audio", entity.ErrInvalidParameter)
	}

	if req.CallbackURL != "" {
		if err := ValidateCallbackURL(req.CallbackURL); err != nil {
			return err
		}
	}

	return nil
}

// ValidateCallbackURL accepts absolute http and https URLs only
func ValidateCallbackURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: callback_url", entity.ErrInvalidFormat)
	}
	return nil
}

// SanitizeFilename sanitizes a filename for safe storage
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	replacer := strings.NewReplacer(
		" ", "_",
		"(", "",
		")", "",
		"[", "",
		"]", "",
		"{", "",
		"}", "",
	)
	return replacer.Replace(filename)
}
