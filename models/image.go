package models

import (
	"fmt"

	"github.com/visionboard/backend/utils"
)

// Uploaded image kinds: board images picked by the user and proof
// photos attached to habit completions.
const (
	ImageTypeVision = "vision"
	ImageTypeProof  = "proof"
)

// UploadedImage is the metadata record for a stored binary object. It is
// written strictly after the upload pipeline produced a retrievable URL.
type UploadedImage struct {
	Owned
	URL  string `gorm:"size:1024;not null" json:"url"`
	Type string `gorm:"size:16;not null;default:'vision'" json:"type"`
}

// Normalize validates the URL and kind. The URL comes from the upload
// pipeline, not from user input, so it is required rather than trimmed.
func (i *UploadedImage) Normalize() error {
	if i.URL == "" {
		return fmt.Errorf("%w: image url is required", utils.ErrValidation)
	}
	if i.Type == "" {
		i.Type = ImageTypeVision
	}
	if i.Type != ImageTypeVision && i.Type != ImageTypeProof {
		return fmt.Errorf("%w: invalid image type %q", utils.ErrValidation, i.Type)
	}
	return nil
}

// Valid reports whether a stored row carries its required fields.
func (i *UploadedImage) Valid() bool { return i.URL != "" }
