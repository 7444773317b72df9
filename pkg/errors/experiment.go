package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Category sentinels. Match with Is; never return them directly.
var (
	// ErrConfiguration marks invalid user configuration detected before any
	// model touches the data.
	ErrConfiguration = New("configuration error")

	// ErrValueNotSupported marks an enum-like field holding an unknown value.
	// Every error carrying it is also an ErrConfiguration.
	ErrValueNotSupported = New("value not supported")

	// ErrDataSufficiency marks a dataset with too few (or too many) labels
	// for the requested model.
	ErrDataSufficiency = New("data sufficiency error")

	// ErrDataQuality marks missing or non-numeric values found right before fitting.
	ErrDataQuality = New("data quality error")
)

// ConfigurationError reports an invalid experiment setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("slamd: invalid %s: %s", e.Field, e.Reason)
}

// Is reports category membership for the standard library errors.Is.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Str("reason", e.Reason).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError naming the offending field.
func NewConfigurationError(field, format string, args ...interface{}) error {
	err := &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
	return errors.Mark(errors.WithStack(err), ErrConfiguration)
}

// ValueNotSupportedError reports a value outside a closed set, such as an
// unknown model kind or a direction other than min/max.
type ValueNotSupportedError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValueNotSupportedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("slamd: %s", e.Message)
	}
	return fmt.Sprintf("slamd: value not supported for %s: %v", e.Field, e.Value)
}

// Is reports category membership for the standard library errors.Is.
func (e *ValueNotSupportedError) Is(target error) bool {
	return target == ErrValueNotSupported || target == ErrConfiguration
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValueNotSupportedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Interface("value", e.Value).
		Str("type", "ValueNotSupportedError")
}

// NewValueNotSupportedError creates a ValueNotSupportedError. An empty
// message falls back to a generic one naming field and value.
func NewValueNotSupportedError(field string, value interface{}, message string) error {
	err := &ValueNotSupportedError{Field: field, Value: value, Message: message}
	return errors.Mark(errors.Mark(errors.WithStack(err), ErrValueNotSupported), ErrConfiguration)
}

// DataSufficiencyError reports that a target column cannot support the
// requested model. Required and Found carry the counts behind the message.
type DataSufficiencyError struct {
	Target   string
	Required int
	Found    int
	Message  string
}

func (e *DataSufficiencyError) Error() string {
	return "slamd: " + e.Message
}

// Is reports category membership for the standard library errors.Is.
func (e *DataSufficiencyError) Is(target error) bool {
	return target == ErrDataSufficiency
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataSufficiencyError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("target", e.Target).
		Int("required", e.Required).
		Int("found", e.Found).
		Str("type", "DataSufficiencyError")
}

// NewDataSufficiencyError creates a DataSufficiencyError.
func NewDataSufficiencyError(target string, required, found int, message string) error {
	err := &DataSufficiencyError{Target: target, Required: required, Found: found, Message: message}
	return errors.Mark(errors.WithStack(err), ErrDataSufficiency)
}

// DataQualityError reports values that cannot be fed to a model.
type DataQualityError struct {
	Stage  string
	Column string
	Reason string
}

func (e *DataQualityError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("slamd: %s: column '%s': %s", e.Stage, e.Column, e.Reason)
	}
	return fmt.Sprintf("slamd: %s: %s", e.Stage, e.Reason)
}

// Is reports category membership for the standard library errors.Is.
func (e *DataQualityError) Is(target error) bool {
	return target == ErrDataQuality
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataQualityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "DataQualityError")
}

// NewDataQualityError creates a DataQualityError.
func NewDataQualityError(stage, column, reason string) error {
	err := &DataQualityError{Stage: stage, Column: column, Reason: reason}
	return errors.Mark(errors.WithStack(err), ErrDataQuality)
}
