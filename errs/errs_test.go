package errs

import (
	"errors"
	"testing"
)

func TestIsMatchesWrappedKind(t *testing.T) {
	base := errors.New("disk full")
	err := Wrap(IOError, "write block", base)

	if !Is(err, IOError) {
		t.Error("Is did not match the wrapped Kind")
	}
	if Is(err, NotFound) {
		t.Error("Is matched an unrelated Kind")
	}
}

func TestUnwrapReturnsUnderlyingError(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(SignatureInvalid, "verify", base)

	if !errors.Is(err, base) {
		t.Error("errors.Is did not see through to the wrapped cause")
	}
}

func TestNewHasNoUnderlyingCause(t *testing.T) {
	err := New(Schema, "bad field")
	if err.Unwrap() != nil {
		t.Error("New-created error should have a nil cause")
	}
	if err.Error() != "schema: bad field" {
		t.Errorf("Error(): got %q", err.Error())
	}
}

func TestNewfFormatsMessage(t *testing.T) {
	err := Newf(UnknownKey, "key %s not found", "abc123")
	if err.Error() != "unknown_key: key abc123 not found" {
		t.Errorf("Error(): got %q", err.Error())
	}
}

func TestIsReturnsFalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), Schema) {
		t.Error("Is should not match a non-*Error")
	}
}
