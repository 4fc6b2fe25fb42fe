package qbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"
)

// ErrClosed is returned by Run and Process after Close.
var ErrClosed = errors.New("qbackend: connection closed")

// Connection handles communication with the frontend and owns the objects
// shared with it. It is also the event loop of the UI thread: application
// data is only accessed during calls to Process (or Run, which calls it),
// and tasks posted from other goroutines run there as well.
//
// Connection implements mapper.Dispatcher.
type Connection struct {
	// RootObject is a singleton object that is always globally available to
	// the client. The root object must be set before connecting. It is a normal
	// object in all ways, except that it will never be destroyed.
	//
	// This field may not be changed after connecting, but the object can of
	// course change its fields at any time.
	RootObject QObject

	// Logger receives warnings and fatal errors. The standard logger is
	// used if it is nil.
	Logger *log.Logger

	in         io.ReadCloser
	out        io.WriteCloser
	writeMutex sync.Mutex

	objects    map[string]QObject
	knownTypes map[string]struct{}

	started       bool
	processSignal chan struct{}
	queue         chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	errMutex      sync.Mutex
	err           error

	taskMutex sync.Mutex
	tasks     []func(ctx context.Context)
	loopCtx   context.Context
}

type loopKey struct{}

// NewConnection creates a new connection from an open stream. To use the
// connection, a RootObject must be assigned and Run() or Process() must be
// called to start processing data.
func NewConnection(data io.ReadWriteCloser) *Connection {
	return NewConnectionSplit(data, data)
}

// NewConnectionSplit is equivalent to NewConnection, except that it uses
// separate streams for reading and writing. This is useful for certain kinds
// of pipe or when using stdin and stdout.
func NewConnectionSplit(in io.ReadCloser, out io.WriteCloser) *Connection {
	c := &Connection{
		in:            in,
		out:           out,
		objects:       make(map[string]QObject),
		knownTypes:    make(map[string]struct{}),
		processSignal: make(chan struct{}, 1),
		queue:         make(chan []byte, 128),
		done:          make(chan struct{}),
	}
	c.loopCtx = context.WithValue(context.Background(), loopKey{}, c)
	return c
}

// NewLocalConnection creates a connection without a frontend. It manages
// objects and runs the event loop, but has nothing to send or receive. It
// ends when Close is called.
func NewLocalConnection() *Connection {
	return NewConnectionSplit(nil, nil)
}

type messageBase struct {
	Command string `json:"command"`
}

func (c *Connection) logf(fmsg string, p ...interface{}) {
	if c != nil && c.Logger != nil {
		c.Logger.Printf(fmsg, p...)
	} else {
		log.Printf(fmsg, p...)
	}
}

func (c *Connection) fatal(fmsg string, p ...interface{}) {
	err := fmt.Errorf(fmsg, p...)
	c.logf("qbackend: FATAL: %s", err)
	c.end(err)
}

func (c *Connection) warn(fmsg string, p ...interface{}) {
	c.logf("qbackend: WARNING: "+fmsg, p...)
}

// end closes the connection once, recording err as the reason.
func (c *Connection) end(err error) {
	c.closeOnce.Do(func() {
		c.errMutex.Lock()
		c.err = err
		c.errMutex.Unlock()
		if c.in != nil {
			c.in.Close()
		}
		if c.out != nil {
			c.out.Close()
		}
		close(c.done)
	})
}

// Close ends the connection. Run returns ErrClosed after it has run any
// tasks that are still pending.
func (c *Connection) Close() error {
	c.end(ErrClosed)
	return nil
}

// Err returns the error that ended the connection, or nil while it is open.
func (c *Connection) Err() error {
	c.errMutex.Lock()
	defer c.errMutex.Unlock()
	return c.err
}

// Done returns a channel that is closed when the connection ends.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) signalProcess() {
	select {
	case c.processSignal <- struct{}{}:
	default:
	}
}

func (c *Connection) sendMessage(msg interface{}) {
	if c.out == nil {
		return
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		c.fatal("message encoding failed: %s", err)
		return
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if _, err := fmt.Fprintf(c.out, "%d %s\n", len(buf), buf); err != nil {
		c.fatal("write error: %s", err)
	}
}

// handle() runs in an internal goroutine to read from 'in'. Messages are
// posted to the queue and processSignal is triggered.
func (c *Connection) handle(root map[string]interface{}) {
	c.sendMessage(struct {
		messageBase
		Version int `json:"version"`
	}{messageBase{"VERSION"}, 2})

	c.sendMessage(struct {
		messageBase
		Identifier string      `json:"identifier"`
		Type       *typeInfo   `json:"type"`
		Data       interface{} `json:"data"`
	}{
		messageBase{"ROOT"},
		"root",
		objectImplFor(c.RootObject).Type,
		root,
	})

	rd := bufio.NewReader(c.in)
	for c.Err() == nil {
		sizeStr, err := rd.ReadString(' ')
		if err != nil {
			c.fatal("read error: %s", err)
			return
		} else if len(sizeStr) < 2 {
			c.fatal("read invalid message: invalid size")
			return
		}

		byteCnt, _ := strconv.ParseInt(sizeStr[:len(sizeStr)-1], 10, 32)
		if byteCnt < 1 {
			c.fatal("read invalid message: size too short")
			return
		}

		blob := make([]byte, byteCnt)
		if _, err := io.ReadFull(rd, blob); err != nil {
			c.fatal("read error: %s", err)
			return
		}

		// Read the final newline
		if nl, err := rd.ReadByte(); err != nil {
			c.fatal("read error: %s", err)
			return
		} else if nl != '\n' {
			c.fatal("read invalid message: expected terminating newline, read %c", nl)
			return
		}

		select {
		case c.queue <- blob:
			c.signalProcess()
		case <-c.done:
			return
		}
	}
}

func (c *Connection) ensureHandler() error {
	if c.started {
		return c.Err()
	}
	c.started = true

	if c.in == nil {
		// Local connection
		return nil
	}

	if c.RootObject == nil {
		c.fatal("connection must have a root object")
		return c.Err()
	}
	if isObject, obj := QObjectFor(c.RootObject); !isObject {
		c.fatal("root object must be a QObject")
		return c.Err()
	} else if obj == nil {
		if _, err := initObjectId(c.RootObject, c, "root"); err != nil {
			c.fatal("root object init failed: %s", err)
			return c.Err()
		}
	}
	objectImplFor(c.RootObject).Ref = true

	// The root object is marshaled here, on the caller's thread, rather than
	// by the reading goroutine.
	root, err := c.RootObject.marshalObject()
	if err != nil {
		c.fatal("marshalling of root object failed: %s", err)
		return c.Err()
	}

	go c.handle(root)
	return nil
}

func (c *Connection) Started() bool {
	return c.started
}

// Run processes messages and tasks until the connection is closed. Be aware
// that when using Run, any data exposed in objects could be accessed by the
// connection at any time. For better control over concurrency, see Process
// and RunLockable.
//
// Run is equivalent to a loop of Process and ProcessSignal.
func (c *Connection) Run() error {
	if err := c.ensureHandler(); err != nil {
		return err
	}
	for {
		select {
		case <-c.processSignal:
			if err := c.Process(); err != nil {
				return err
			}
		case <-c.done:
			c.Process()
			return c.Err()
		}
	}
}

// Process handles any pending messages and posted tasks on the connection,
// but does not block to wait for new ones. ProcessSignal signals when there
// is something to process.
//
// Application data (objects and their fields) is never accessed except during
// calls to Process() or other qbackend methods. By controlling calls to
// Process, applications can avoid concurrency issues with object data.
//
// Process returns nil while the connection is open. All errors are fatal for
// the connection.
func (c *Connection) Process() error {
	c.ensureHandler()

	for {
		select {
		case data := <-c.queue:
			c.handleMessage(data)
			continue
		default:
		}

		if !c.runTask() {
			return c.Err()
		}
	}
}

// ProcessSignal returns a channel which is signalled whenever the Connection
// needs to process messages or tasks. The caller must call Process() after
// reading from this channel. Use Done to learn when the connection ends.
func (c *Connection) ProcessSignal() <-chan struct{} {
	c.ensureHandler()
	return c.processSignal
}

// Post queues task to run during the next call to Process. It may be called
// from any goroutine and never blocks. The context passed to task is
// recognized by OnThread.
func (c *Connection) Post(task func(ctx context.Context)) {
	c.taskMutex.Lock()
	c.tasks = append(c.tasks, task)
	c.taskMutex.Unlock()
	c.signalProcess()
}

// OnThread reports whether ctx was passed by this connection to a posted
// task or an invoked method. Such a context must not be used outside of
// the call it was passed to.
func (c *Connection) OnThread(ctx context.Context) bool {
	return ctx != nil && ctx.Value(loopKey{}) == c
}

// Context returns the context passed to tasks and invoked methods.
func (c *Connection) Context() context.Context {
	return c.loopCtx
}

func (c *Connection) runTask() bool {
	c.taskMutex.Lock()
	if len(c.tasks) == 0 {
		c.taskMutex.Unlock()
		return false
	}
	task := c.tasks[0]
	c.tasks = c.tasks[1:]
	c.taskMutex.Unlock()

	task(c.loopCtx)
	return true
}

func (c *Connection) handleMessage(data []byte) {
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.fatal("process invalid message: %s", err)
		return
	}

	identifier, _ := msg["identifier"].(string)
	obj, objExists := c.objects[identifier]

	switch msg["command"] {
	case "OBJECT_REF":
		if objExists {
			impl := obj.(*objectImpl)
			impl.Ref = true
			// Record that the client has acknowledged an object of this type
			c.knownTypes[impl.Type.Name] = struct{}{}
		} else {
			c.warn("ref of unknown object %s", identifier)
		}

	case "OBJECT_DEREF":
		if objExists {
			obj.(*objectImpl).Ref = false
		} else {
			c.warn("deref of unknown object %s", identifier)
		}

	case "OBJECT_QUERY":
		if objExists {
			c.sendUpdate(obj)
		} else {
			c.fatal("query of unknown object %s", identifier)
		}

	case "OBJECT_SET":
		property, _ := msg["property"].(string)
		if !objExists {
			c.fatal("set of %s on unknown object %s", property, identifier)
			break
		}
		changed, err := obj.setProperty(property, msg["value"])
		if err != nil {
			c.warn("set of %s on %s failed: %s", property, identifier, err)
		}
		if !changed || err != nil {
			// The client shows a value that was not stored
			c.sendUpdate(obj)
		}

	case "INVOKE":
		method, _ := msg["method"].(string)
		if !objExists {
			c.fatal("invoke of %s on unknown object %s", method, identifier)
			break
		}
		params, ok := msg["parameters"].([]interface{})
		if !ok {
			c.fatal("invoke with invalid parameters of %s on %s", method, identifier)
			break
		}
		if err := obj.invoke(c.loopCtx, method, params...); err != nil {
			c.warn("invoke of %s on %s failed: %s", method, identifier, err)
		}

	default:
		c.fatal("unknown command %s", msg["command"])
	}
}

func (c *Connection) addObject(obj QObject) {
	id := obj.Identifier()
	if eObj, exists := c.objects[id]; exists {
		if obj != eObj {
			c.fatal("registered different object with duplicate identifier %s", id)
		}
		return
	}
	c.objects[id] = obj
}

// Object returns a registered QObject by its identifier
func (c *Connection) Object(name string) QObject {
	return c.objects[name]
}

// InitObject explicitly initializes a QObject, assigning an identifier and
// setting up signal functions.
//
// Objects are automatically initialized as they are encountered in properties
// and parameters, but they must be initialized before their properties or
// signals are used with a mapper.
func (c *Connection) InitObject(obj QObject) error {
	_, err := initObject(obj, c)
	return err
}

// InitObjectId is equivalent to InitObject, but takes an identifier for the
// the object. Nothing is changed if the object has already been initialized.
func (c *Connection) InitObjectId(obj QObject, id string) error {
	if eobj, exists := c.objects[id]; exists {
		if _, q := QObjectFor(obj); q != eobj {
			return errors.New("object id in use")
		}
	}
	_, err := initObjectId(obj, c, id)
	return err
}

func (c *Connection) sendUpdate(obj QObject) error {
	if !obj.Referenced() {
		return nil
	}

	data, err := obj.marshalObject()
	if err != nil {
		impl := obj.(*objectImpl)
		c.warn("marshal of object %s (type %s) failed: %s", impl.Id, impl.Type.Name, err)
		return err
	}

	c.sendMessage(struct {
		messageBase
		Identifier string                 `json:"identifier"`
		Data       map[string]interface{} `json:"data"`
	}{
		messageBase{"OBJECT_RESET"},
		obj.Identifier(),
		data,
	})
	return nil
}

func (c *Connection) sendEmit(obj QObject, method string, data []interface{}) {
	c.sendMessage(struct {
		messageBase
		Identifier string        `json:"identifier"`
		Method     string        `json:"method"`
		Parameters []interface{} `json:"parameters"`
	}{messageBase{"EMIT"}, obj.Identifier(), method, data})
}

func (c *Connection) typeIsAcknowledged(t *typeInfo) bool {
	_, exists := c.knownTypes[t.Name]
	return exists
}
