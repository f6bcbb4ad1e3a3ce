package respserver

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/slatekv/slatekv-go/internal/command"
)

// ============================================================
// ReadCommand Tests - Array Format
// ============================================================

func TestReadCommand_Array(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "simple PING command",
			input: "*1\r\n$4\r\nPING\r\n",
			want:  []string{"PING"},
		},
		{
			name:  "GET command",
			input: "*2\r\n$3\r\nGET\r\n$5\r\nmykey\r\n",
			want:  []string{"GET", "mykey"},
		},
		{
			name:  "SET command with value",
			input: "*3\r\n$3\r\nSET\r\n$5\r\nmykey\r\n$7\r\nmyvalue\r\n",
			want:  []string{"SET", "mykey", "myvalue"},
		},
		{
			name:  "binary safe value",
			input: "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$4\r\na\r\nb\r\n",
			want:  []string{"SET", "k", "a\r\nb"},
		},
		{
			name:  "empty array",
			input: "*0\r\n",
			want:  nil,
		},
		{
			name:  "null array",
			input: "*-1\r\n",
			want:  nil,
		},
		{
			name:    "bad array header",
			input:   "*abc\r\n",
			wantErr: true,
		},
		{
			name:    "bulk missing terminator",
			input:   "*1\r\n$4\r\nPINGxx",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			got, err := ReadCommand(r)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if len(got) != len(tt.want) {
				t.Errorf("len = %d, want %d", len(got), len(tt.want))
				return
			}
			for i, want := range tt.want {
				if string(got[i]) != want {
					t.Errorf("arg[%d] = %q, want %q", i, string(got[i]), want)
				}
			}
		})
	}
}

// ============================================================
// ReadCommand Tests - Inline Format
// ============================================================

func TestReadCommand_Inline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple PING",
			input: "PING\r\n",
			want:  []string{"PING"},
		},
		{
			name:  "inline with args",
			input: "SET key value\r\n",
			want:  []string{"SET", "key", "value"},
		},
		{
			name:  "extra whitespace",
			input: "  GET   key  \r\n",
			want:  []string{"GET", "key"},
		},
		{
			name:  "blank line",
			input: "\r\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			got, err := ReadCommand(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, want := range tt.want {
				if string(got[i]) != want {
					t.Errorf("arg[%d] = %q, want %q", i, string(got[i]), want)
				}
			}
		})
	}
}

// ============================================================
// Protocol Limit Tests
// ============================================================

func TestReadCommand_ArrayTooLong(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("*99999\r\n"))
	_, err := ReadCommand(r)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
}

func TestReadCommand_BulkTooLong(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("*1\r\n$9999999\r\n"))
	_, err := ReadCommand(r)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
}

func TestReadCommand_InlineTooLong(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(strings.Repeat("A", MaxInlineLen+10) + "\r\n"))
	_, err := ReadCommand(r)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("err = %v, want ErrLimitExceeded", err)
	}
}

// ============================================================
// WriteReply Tests
// ============================================================

func TestWriteReply(t *testing.T) {
	tests := []struct {
		name  string
		reply command.Reply
		want  string
	}{
		{
			name:  "simple string",
			reply: command.SimpleReply("OK"),
			want:  "+OK\r\n",
		},
		{
			name:  "error",
			reply: command.ErrReply("ERR boom"),
			want:  "-ERR boom\r\n",
		},
		{
			name:  "integer",
			reply: command.IntReply(42),
			want:  ":42\r\n",
		},
		{
			name:  "negative integer",
			reply: command.IntReply(-2),
			want:  ":-2\r\n",
		},
		{
			name:  "bulk",
			reply: command.BulkReply([]byte("hello")),
			want:  "$5\r\nhello\r\n",
		},
		{
			name:  "nil bulk",
			reply: command.NilReply(),
			want:  "$-1\r\n",
		},
		{
			name: "array",
			reply: command.ArrayReply([]command.Reply{
				command.BulkReply([]byte("a")),
				command.NilReply(),
				command.IntReply(7),
			}),
			want: "*3\r\n$1\r\na\r\n$-1\r\n:7\r\n",
		},
		{
			name:  "empty array",
			reply: command.ArrayReply(nil),
			want:  "*0\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := bufio.NewWriter(&buf)
			if err := WriteReply(w, tt.reply); err != nil {
				t.Fatalf("WriteReply: %v", err)
			}
			w.Flush()
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}
