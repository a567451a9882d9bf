package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoPriceableItemsFound = errors.New("no priceable items found")
	ErrMalformedDocument     = errors.New("malformed document")

	ErrReconciliationBlocked = errors.New("payment schedule does not match final value")
	ErrInvalidInstallment    = errors.New("invalid installment")
	ErrEnvironmentNotFound   = errors.New("environment line not found")
	ErrInstallmentNotFound   = errors.New("installment not found")
	ErrItemNotFound          = errors.New("detail item not found")
	ErrEmptyProposal         = errors.New("proposal has no selected environment lines")

	ErrCompanyNotFound  = errors.New("company not found")
	ErrContractNotFound = errors.New("contract not found")
)

// ImportError is fatal to an import: nothing from the document is kept.
type ImportError struct {
	Kind error // ErrNoPriceableItemsFound or ErrMalformedDocument
	Err  error // underlying parse failure, nil for ErrNoPriceableItemsFound
}

func (e *ImportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("import failed: %v", e.Kind)
	}
	return fmt.Sprintf("import failed: %v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the parse reason to errors.Is / errors.As.
func (e *ImportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ConfigurationError rejects a configuration value or an operator entry.
// The previous valid state is always retained when one is returned.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsConfigurationError reports whether err carries a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
