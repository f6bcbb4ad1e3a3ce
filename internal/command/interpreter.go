package command

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Keyspace is the store surface the interpreter executes against.
type Keyspace interface {
	Set(key string, value []byte, ttl time.Duration) bool
	Get(key string) ([]byte, bool)
	Delete(key string) bool
	Exists(key string) bool
	Expire(key string, ttl time.Duration) bool
	Persist(key string) bool
	TTL(key string) int64
	Keys() []string
	Len() int
	Flush() int
}

// Snapshotter triggers an on-demand durability capture.
type Snapshotter interface {
	TriggerSnapshot(ctx context.Context) error
}

// ErrSnapshotInProgress is returned by Snapshotter implementations
// when a capture is already running. SAVE maps it to a success status
// because the requested work is happening either way.
var ErrSnapshotInProgress = errors.New("command: snapshot already in progress")

// Interpreter dispatches parsed commands.
type Interpreter struct {
	store  Keyspace
	snaps  Snapshotter
	logger *slog.Logger
}

// New creates an Interpreter. snaps may be nil, in which case SAVE
// reports an error.
func New(store Keyspace, snaps Snapshotter, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		store:  store,
		snaps:  snaps,
		logger: logger,
	}
}

// Dispatch executes one command and returns its reply. args is the
// full command including the name; it must be non-empty.
func (in *Interpreter) Dispatch(ctx context.Context, args [][]byte) Reply {
	if len(args) == 0 {
		return ErrReply("ERR no command")
	}

	name := normalizeCommandName(args[0])
	switch name {
	case "SET":
		return in.set(args)
	case "GET":
		return in.get(args)
	case "DEL", "DELETE":
		return in.del(name, args)
	case "EXISTS":
		return in.exists(args)
	case "MGET":
		return in.mget(args)
	case "MSET":
		return in.mset(args)
	case "EXPIRE":
		return in.expire(args)
	case "PERSIST":
		return in.persist(args)
	case "TTL":
		return in.ttl(args)
	case "KEYS":
		return in.keys(args)
	case "DBSIZE":
		return in.dbsize(args)
	case "FLUSH", "FLUSHDB":
		return in.flush(args)
	case "SAVE":
		return in.save(ctx, args)
	case "PING":
		return in.ping(args)
	case "QUIT":
		reply := OK
		reply.Close = true
		return reply
	default:
		return ErrReply("ERR unknown command '" + name + "'")
	}
}

// Name extracts the normalized command name from args, for logging
// and metric labels.
func Name(args [][]byte) string {
	if len(args) == 0 {
		return ""
	}
	return normalizeCommandName(args[0])
}

// SET <key> <value> [EX seconds | PX milliseconds]
func (in *Interpreter) set(args [][]byte) Reply {
	if len(args) < 3 {
		return arityError("SET")
	}

	var ttl time.Duration
	haveExpiry := false
	for i := 3; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return ErrReply("ERR syntax error")
		}
		opt := strings.ToUpper(string(args[i]))
		n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
		if err != nil || n <= 0 {
			return ErrReply("ERR invalid expire time in 'SET' command")
		}
		switch opt {
		case "EX", "PX":
			// EX and PX are mutually exclusive and may appear once.
			if haveExpiry {
				return ErrReply("ERR syntax error")
			}
			haveExpiry = true
			if opt == "EX" {
				ttl = time.Duration(n) * time.Second
			} else {
				ttl = time.Duration(n) * time.Millisecond
			}
		default:
			return ErrReply("ERR syntax error")
		}
	}

	in.store.Set(string(args[1]), args[2], ttl)
	return OK
}

// GET <key>
func (in *Interpreter) get(args [][]byte) Reply {
	if len(args) != 2 {
		return arityError("GET")
	}
	value, ok := in.store.Get(string(args[1]))
	if !ok {
		return NilReply()
	}
	return BulkReply(value)
}

// DEL <key> [key ...]
//
// DELETE is accepted as an alias for compatibility with older clients.
func (in *Interpreter) del(name string, args [][]byte) Reply {
	if len(args) < 2 {
		return arityError(name)
	}
	deleted := 0
	for i := 1; i < len(args); i++ {
		if in.store.Delete(string(args[i])) {
			deleted++
		}
	}
	return IntReply(int64(deleted))
}

// EXISTS <key> [key ...]
//
// Counts keys that exist; a key given multiple times is counted each
// time, matching Redis.
func (in *Interpreter) exists(args [][]byte) Reply {
	if len(args) < 2 {
		return arityError("EXISTS")
	}
	count := 0
	for i := 1; i < len(args); i++ {
		if in.store.Exists(string(args[i])) {
			count++
		}
	}
	return IntReply(int64(count))
}

// MGET <key> [key ...]
func (in *Interpreter) mget(args [][]byte) Reply {
	if len(args) < 2 {
		return arityError("MGET")
	}
	elems := make([]Reply, 0, len(args)-1)
	for i := 1; i < len(args); i++ {
		value, ok := in.store.Get(string(args[i]))
		if !ok {
			elems = append(elems, NilReply())
			continue
		}
		elems = append(elems, BulkReply(value))
	}
	return ArrayReply(elems)
}

// MSET <key> <value> [key value ...]
//
// Replies with the number of pairs set.
func (in *Interpreter) mset(args [][]byte) Reply {
	if len(args) < 3 || len(args)%2 != 1 {
		return arityError("MSET")
	}
	pairs := 0
	for i := 1; i < len(args); i += 2 {
		in.store.Set(string(args[i]), args[i+1], 0)
		pairs++
	}
	return IntReply(int64(pairs))
}

// EXPIRE <key> <seconds>
func (in *Interpreter) expire(args [][]byte) Reply {
	if len(args) != 3 {
		return arityError("EXPIRE")
	}
	seconds, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return ErrReply("ERR value is not an integer or out of range")
	}
	if seconds <= 0 {
		// Immediate expiration is equivalent to deletion.
		if in.store.Delete(string(args[1])) {
			return IntReply(1)
		}
		return IntReply(0)
	}
	if in.store.Expire(string(args[1]), time.Duration(seconds)*time.Second) {
		return IntReply(1)
	}
	return IntReply(0)
}

// PERSIST <key>
func (in *Interpreter) persist(args [][]byte) Reply {
	if len(args) != 2 {
		return arityError("PERSIST")
	}
	if in.store.Persist(string(args[1])) {
		return IntReply(1)
	}
	return IntReply(0)
}

// TTL <key>
//
// Returns -2 if the key does not exist, -1 if it has no expiration,
// otherwise the remaining lifetime in seconds.
func (in *Interpreter) ttl(args [][]byte) Reply {
	if len(args) != 2 {
		return arityError("TTL")
	}
	return IntReply(in.store.TTL(string(args[1])))
}

// KEYS <pattern>
func (in *Interpreter) keys(args [][]byte) Reply {
	if len(args) != 2 {
		return arityError("KEYS")
	}
	pattern := string(args[1])

	keys := in.store.Keys()
	sort.Strings(keys)

	elems := make([]Reply, 0, len(keys))
	for _, key := range keys {
		if matchGlob(pattern, key) {
			elems = append(elems, BulkReply([]byte(key)))
		}
	}
	return ArrayReply(elems)
}

// DBSIZE
func (in *Interpreter) dbsize(args [][]byte) Reply {
	if len(args) != 1 {
		return arityError("DBSIZE")
	}
	return IntReply(int64(in.store.Len()))
}

// FLUSH
//
// Removes every key and returns how many were dropped. FLUSHDB is
// accepted as an alias.
func (in *Interpreter) flush(args [][]byte) Reply {
	if len(args) != 1 {
		return arityError("FLUSH")
	}
	return IntReply(int64(in.store.Flush()))
}

// SAVE
//
// Requests an on-demand snapshot. If one is already in flight the
// request collapses into it and still reports success.
func (in *Interpreter) save(ctx context.Context, args [][]byte) Reply {
	if len(args) != 1 {
		return arityError("SAVE")
	}
	if in.snaps == nil {
		return ErrReply("ERR snapshots are disabled")
	}

	err := in.snaps.TriggerSnapshot(ctx)
	switch {
	case err == nil:
		return OK
	case errors.Is(err, ErrSnapshotInProgress):
		return SimpleReply("Background save already in progress")
	default:
		in.logger.Error("on-demand snapshot failed", "error", err)
		return ErrReply("ERR snapshot failed: " + err.Error())
	}
}

// PING [message]
func (in *Interpreter) ping(args [][]byte) Reply {
	switch len(args) {
	case 1:
		return SimpleReply("PONG")
	case 2:
		return BulkReply(args[1])
	default:
		return arityError("PING")
	}
}

func arityError(name string) Reply {
	return ErrReply("ERR wrong number of arguments for '" + name + "' command")
}

func normalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return strings.ToUpper(string(b))
}
