// Package form abstracts the host UI the session components touch: the
// currently mounted input fields, the current location and navigation.
// Keeping these behind interfaces lets the recovery state machine run
// headless.
package form

// Adapter captures and re-applies named field values of the visible form.
type Adapter interface {
	// CaptureVisibleFields returns every named, non-empty field value.
	CaptureVisibleFields() map[string]any
	// ApplyFields writes values into fields with matching names. Unknown
	// names are ignored.
	ApplyFields(fields map[string]any)
}

// Navigator reports and changes the current location.
type Navigator interface {
	Location() string
	Navigate(url string)
}
