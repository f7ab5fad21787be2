package linklist

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Validate checks an import record before it is allowed anywhere near
// the network. A record that fails validation is counted as skipped by
// the bulk importer, never as failed.
func (r ImportRecord) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.URL, validation.Required, is.URL),
		validation.Field(&r.Title, validation.Length(0, 500)),
		validation.Field(&r.Description, validation.Length(0, 2000)),
		validation.Field(&r.Category, validation.Length(0, 100)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, 100))),
	)
	if err != nil {
		return NewError(KindValidation, "validate_record", err)
	}
	return nil
}
