// Package command implements the command interpreter.
//
// The interpreter validates and executes parsed commands against the
// keyspace and produces protocol-agnostic replies. It owns no
// connection state: the transport feeds it one command at a time and
// writes the reply it gets back.
package command

import "fmt"

// ReplyKind discriminates the wire representation of a Reply.
type ReplyKind int

const (
	// ReplySimple is a simple status string, "+OK".
	ReplySimple ReplyKind = iota
	// ReplyError is an error string, "-ERR ...".
	ReplyError
	// ReplyInteger is a signed integer, ":n".
	ReplyInteger
	// ReplyBulk is a binary-safe string, "$n\r\n...".
	ReplyBulk
	// ReplyNil is the nil bulk string, "$-1".
	ReplyNil
	// ReplyArray is an ordered list of replies, "*n".
	ReplyArray
)

// Reply is the result of executing one command.
type Reply struct {
	Kind  ReplyKind
	Str   string
	Int   int64
	Bulk  []byte
	Array []Reply

	// Close tells the transport to close the connection after
	// writing the reply.
	Close bool
}

// OK is the canonical success status reply.
var OK = Reply{Kind: ReplySimple, Str: "OK"}

// SimpleReply returns a simple status reply.
func SimpleReply(s string) Reply {
	return Reply{Kind: ReplySimple, Str: s}
}

// ErrReply returns an error reply with the given message.
func ErrReply(msg string) Reply {
	return Reply{Kind: ReplyError, Str: msg}
}

// ErrReplyf returns a formatted error reply.
func ErrReplyf(format string, args ...any) Reply {
	return Reply{Kind: ReplyError, Str: fmt.Sprintf(format, args...)}
}

// IntReply returns an integer reply.
func IntReply(n int64) Reply {
	return Reply{Kind: ReplyInteger, Int: n}
}

// BulkReply returns a bulk string reply. A nil value becomes the nil
// bulk reply.
func BulkReply(b []byte) Reply {
	if b == nil {
		return Reply{Kind: ReplyNil}
	}
	return Reply{Kind: ReplyBulk, Bulk: b}
}

// NilReply returns the nil bulk reply.
func NilReply() Reply {
	return Reply{Kind: ReplyNil}
}

// ArrayReply returns an array reply over the given elements.
func ArrayReply(elems []Reply) Reply {
	return Reply{Kind: ReplyArray, Array: elems}
}

// IsError reports whether the reply is an error reply.
func (r Reply) IsError() bool {
	return r.Kind == ReplyError
}
