package docx

import (
	"github.com/gabriel-vasile/mimetype"

	"github.com/sells-group/auto-oracle/internal/model"
)

// MIMEType is the media type of a word document.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DetectType sniffs the media type of the file at path.
func DetectType(path string) (*mimetype.MIME, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, model.WrapError(err, model.KindIO, "docx: detect type of "+path)
	}
	return mt, nil
}

// IsWordDocument reports whether the file at path is a word document.
func IsWordDocument(path string) (bool, error) {
	mt, err := DetectType(path)
	if err != nil {
		return false, err
	}
	return mt.Is(MIMEType), nil
}
