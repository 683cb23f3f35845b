// Package businessflow contains the core business logic for campaign dispatch workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignAccessDenied     = errors.New("campaign access denied")
	ErrCampaignNotCancelable    = errors.New("campaign can no longer be canceled")
	ErrCampaignNotPausable      = errors.New("campaign can no longer be paused")
	ErrCampaignNotPaused        = errors.New("campaign is not paused")
	ErrCampaignVariantsRequired = errors.New("at least one message variant is required")
	ErrCampaignNumberRequired   = errors.New("campaign sending number is required")
	ErrCampaignPublicRequired   = errors.New("campaign public is required")
	ErrScheduleTimeInPast       = errors.New("schedule time is in the past")

	// Public-related errors
	ErrPublicNotFound        = errors.New("public not found")
	ErrPublicAccessDenied    = errors.New("public access denied")
	ErrPublicNotReady        = errors.New("public is not ready")
	ErrPublicCanceled        = errors.New("public has been canceled")
	ErrPublicEmpty           = errors.New("public resolved to no contacts")
	ErrPublicLabelsRequired  = errors.New("at least one label is required")
	ErrPublicSourceRequired  = errors.New("source public is required")
	ErrPublicFileRequired    = errors.New("contact file is required")
	ErrUnsupportedPublicKind = errors.New("unsupported public kind")

	// Contact and import errors
	ErrContactNotFound       = errors.New("contact not found")
	ErrImportFileEmpty       = errors.New("import file is empty")
	ErrImportFileTooLarge    = errors.New("import file exceeds the size limit")
	ErrImportColumnsNotFound = errors.New("could not locate a phone column in the file")
	ErrUnsupportedFileFormat = errors.New("unsupported file format")

	// Number-related errors
	ErrNumberNotFound     = errors.New("number not found")
	ErrNumberAccessDenied = errors.New("number access denied")
	ErrNumberDisconnected = errors.New("number is not connected")

	// Message-related errors
	ErrMessageNotFound = errors.New("message not found")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignNotCancelable(err error) bool {
	return errors.Is(err, ErrCampaignNotCancelable)
}

func IsCampaignNotPausable(err error) bool {
	return errors.Is(err, ErrCampaignNotPausable)
}

func IsCampaignNotPaused(err error) bool {
	return errors.Is(err, ErrCampaignNotPaused)
}

func IsScheduleTimeInPast(err error) bool {
	return errors.Is(err, ErrScheduleTimeInPast)
}

func IsPublicNotFound(err error) bool {
	return errors.Is(err, ErrPublicNotFound)
}

func IsPublicAccessDenied(err error) bool {
	return errors.Is(err, ErrPublicAccessDenied)
}

func IsPublicNotReady(err error) bool {
	return errors.Is(err, ErrPublicNotReady)
}

func IsPublicCanceled(err error) bool {
	return errors.Is(err, ErrPublicCanceled)
}

func IsPublicEmpty(err error) bool {
	return errors.Is(err, ErrPublicEmpty)
}

func IsPublicLabelsRequired(err error) bool {
	return errors.Is(err, ErrPublicLabelsRequired)
}

func IsContactNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound)
}

func IsImportFileEmpty(err error) bool {
	return errors.Is(err, ErrImportFileEmpty)
}

func IsImportFileTooLarge(err error) bool {
	return errors.Is(err, ErrImportFileTooLarge)
}

func IsImportColumnsNotFound(err error) bool {
	return errors.Is(err, ErrImportColumnsNotFound)
}

func IsUnsupportedFileFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFileFormat)
}

func IsNumberNotFound(err error) bool {
	return errors.Is(err, ErrNumberNotFound)
}

func IsNumberAccessDenied(err error) bool {
	return errors.Is(err, ErrNumberAccessDenied)
}

func IsNumberDisconnected(err error) bool {
	return errors.Is(err, ErrNumberDisconnected)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
