// Package client provides the wire protocol client for slatekv-cli.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds each request round trip.
const DefaultTimeout = 5 * time.Second

// ErrProtocol indicates a malformed server reply.
var ErrProtocol = errors.New("client: malformed server reply")

// Kind identifies a reply type.
type Kind byte

// Reply kinds, matching the wire type bytes.
const (
	KindSimple  Kind = '+'
	KindError   Kind = '-'
	KindInteger Kind = ':'
	KindBulk    Kind = '$'
	KindArray   Kind = '*'
)

// Value is one decoded server reply.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Null  bool
	Array []Value
}

// IsError reports whether the reply is an error reply.
func (v Value) IsError() bool {
	return v.Kind == KindError
}

// Format renders the value for terminal output.
func (v Value) Format() string {
	switch v.Kind {
	case KindSimple:
		return v.Str
	case KindError:
		return "(error) " + v.Str
	case KindInteger:
		return "(integer) " + strconv.FormatInt(v.Int, 10)
	case KindBulk:
		if v.Null {
			return "(nil)"
		}
		return strconv.Quote(v.Str)
	case KindArray:
		if len(v.Array) == 0 {
			return "(empty array)"
		}
		var b strings.Builder
		for i, item := range v.Array {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d) %s", i+1, item.Format())
		}
		return b.String()
	default:
		return ""
	}
}

// Client is a connection to a slatekv server.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	timeout time.Duration
}

// Dial connects to the server at addr.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: connect %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		timeout: timeout,
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one command and returns the decoded reply.
func (c *Client) Do(args ...string) (Value, error) {
	if len(args) == 0 {
		return Value{}, errors.New("client: empty command")
	}

	deadline := time.Now().Add(c.timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return Value{}, err
	}

	if err := c.writeCommand(args); err != nil {
		return Value{}, fmt.Errorf("client: send: %w", err)
	}

	v, err := c.readValue()
	if err != nil {
		return Value{}, fmt.Errorf("client: read reply: %w", err)
	}
	return v, nil
}

// writeCommand encodes args as a command array and flushes it.
func (c *Client) writeCommand(args []string) error {
	fmt.Fprintf(c.writer, "*%d\r\n", len(args))
	for _, arg := range args {
		fmt.Fprintf(c.writer, "$%d\r\n%s\r\n", len(arg), arg)
	}
	return c.writer.Flush()
}

func (c *Client) readValue() (Value, error) {
	line, err := c.readLine()
	if err != nil {
		return Value{}, err
	}
	if len(line) == 0 {
		return Value{}, ErrProtocol
	}

	kind, rest := Kind(line[0]), line[1:]
	switch kind {
	case KindSimple, KindError:
		return Value{Kind: kind, Str: rest}, nil

	case KindInteger:
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Value{}, ErrProtocol
		}
		return Value{Kind: kind, Int: n}, nil

	case KindBulk:
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Value{}, ErrProtocol
		}
		if n < 0 {
			return Value{Kind: kind, Null: true}, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Str: string(buf[:n])}, nil

	case KindArray:
		n, err := strconv.Atoi(rest)
		if err != nil {
			return Value{}, ErrProtocol
		}
		if n < 0 {
			return Value{Kind: kind, Null: true}, nil
		}
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			item, err := c.readValue()
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{Kind: kind, Array: items}, nil

	default:
		return Value{}, ErrProtocol
	}
}

// readLine reads one CRLF-terminated line without the terminator.
func (c *Client) readLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
