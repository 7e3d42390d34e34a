// ABOUTME: Struct-tag validation for entry drafts using go-playground/validator.
// ABOUTME: Rejects empty titles before any mutation reaches storage.
package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrEmptyTitle is returned when a draft or entry has no title.
var ErrEmptyTitle = errors.New("entry title can't be empty")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDraft checks the draft's struct tags.
func ValidateDraft(d EntryDraft) error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "Title" {
					return ErrEmptyTitle
				}
			}
			return fmt.Errorf("invalid entry: %w", err)
		}
		return err
	}
	return nil
}

// ValidateEntry checks the entry's mutable fields.
func ValidateEntry(e Entry) error {
	return ValidateDraft(e.Draft())
}
