package validator

import (
	"testing"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator() *Validator {
	return NewFileValidator(config.FileUploadConfig{MaxFileSize: 1024, MaxUploadSize: 4096})
}

func TestValidateDocumentFile(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  error
	}{
		{name: "text file", filename: "welding.txt", size: 100},
		{name: "markdown upper-case extension", filename: "Fire Plan.MD", size: 100},
		{name: "docx", filename: "ppe.docx", size: 1024},
		{name: "pdf rejected", filename: "manual.pdf", size: 100, wantErr: entity.ErrInvalidExtension},
		{name: "too large", filename: "big.txt", size: 1025, wantErr: entity.ErrFileTooLarge},
		{name: "empty", filename: "empty.txt", size: 0, wantErr: entity.ErrInvalidFile},
		{name: "missing name", filename: "", size: 10, wantErr: entity.ErrMissingField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDocumentFile(tt.filename, tt.size)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateMessage(t *testing.T) {
	v := newValidator()

	req := &entity.MessageRequest{SenderID: "+15550001", Text: "hi"}
	require.NoError(t, v.ValidateMessage(req))
	assert.Equal(t, entity.MessageKindText, req.Kind)

	assert.ErrorIs(t, v.ValidateMessage(&entity.MessageRequest{Text: "hi"}), entity.ErrMissingField)
	assert.ErrorIs(t, v.ValidateMessage(&entity.MessageRequest{SenderID: "a", Kind: "sticker"}), entity.ErrInvalidParameter)
	assert.ErrorIs(t, v.ValidateMessage(&entity.MessageRequest{SenderID: "a", Kind: entity.MessageKindVoice}), entity.ErrInvalidParameter)
	assert.ErrorIs(t, v.ValidateMessage(&entity.MessageRequest{SenderID: "a", CallbackURL: "ftp://x"}), entity.ErrInvalidFormat)
	assert.NoError(t, v.ValidateMessage(&entity.MessageRequest{SenderID: "a", CallbackURL: "https://gateway.local/cb"}))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Fire_Plan_v2.docx", SanitizeFilename("../docs/Fire Plan (v2).docx"))
}
