package errors

import (
	stderrors "errors"
	"testing"
)

func TestTaskwatchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *TaskwatchError
		want string
	}{
		{
			name: "without cause",
			err:  NewError(CodeValidation, "title too long", nil),
			want: "[VALIDATION] title too long",
		},
		{
			name: "with cause",
			err:  NewError(CodeTransport, "connection dropped", stderrors.New("EOF")),
			want: "[TRANSPORT] connection dropped: EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskwatchError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := NewError(CodeAPI, "request failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() did not find wrapped cause")
	}
}

func TestTaskwatchError_SentinelChain(t *testing.T) {
	err := NewError(CodeNotFound, "lookup failed", ErrTaskNotFound)

	if !Is(err, ErrTaskNotFound) {
		t.Error("Is() did not match ErrTaskNotFound through the chain")
	}
	if Is(err, ErrRetriesExhausted) {
		t.Error("Is() matched an unrelated sentinel")
	}
}

func TestWithContext(t *testing.T) {
	err := NewError(CodeDecode, "bad frame", nil)
	err = WithContext(err, "event", "task_created")
	err = WithContext(err, "bytes", 42)

	if err.Context["event"] != "task_created" {
		t.Errorf("Context[event] = %v, want task_created", err.Context["event"])
	}
	if err.Context["bytes"] != 42 {
		t.Errorf("Context[bytes] = %v, want 42", err.Context["bytes"])
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := NewError(CodeTransport, "stream closed", ErrSubscriptionClosed)

	if got := CodeOf(wrapped); got != CodeTransport {
		t.Errorf("CodeOf() = %v, want %v", got, CodeTransport)
	}
	if got := CodeOf(stderrors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %v, want empty", got)
	}
}
