package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-facelink/pkg/protocol"
)

// DefaultReplayInterval paces recorded frames that carry no timestamps.
const DefaultReplayInterval = time.Second / 30

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithBackend sets the back end name reported in session and frame
// messages. The default is protocol.BackendARKit.
func WithBackend(backend string) ClientOption {
	return func(c *Client) {
		c.backend = backend
	}
}

// Client is the capture side of the hub link. It receives start and stop
// commands and uploads frames.
type Client struct {
	conn    *websocket.Conn
	log     *slog.Logger
	backend string

	wmu     sync.Mutex
	control chan *protocol.Message

	mu      sync.Mutex
	readErr error
}

// Dial connects to a hub capture endpoint, e.g. ws://host:8080/ws/capture.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		log:     slog.Default(),
		backend: protocol.BackendARKit,
		control: make(chan *protocol.Message, 16),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.readLoop()
	return c, nil
}

// Control delivers start and stop commands. It is closed when the
// connection ends; Err then reports why.
func (c *Client) Control() <-chan *protocol.Message {
	return c.control
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *Client) readLoop() {
	defer close(c.control)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			c.log.Warn("hub parse error", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeStart, protocol.TypeStop:
			c.control <- msg
		case protocol.TypePing:
			pong, err := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
			if err == nil {
				c.Send(pong)
			}
		}
	}
}

// Send writes a message to the hub.
func (c *Client) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendReady reports a started session.
func (c *Client) SendReady() error {
	msg, err := protocol.NewSessionMessage(protocol.SessionReady, "", c.backend)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// SendFailure reports a session that could not start or has failed.
func (c *Client) SendFailure(reason string) error {
	msg, err := protocol.NewSessionMessage(protocol.SessionFailed, reason, c.backend)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// SendFrame uploads one inference result.
func (c *Client) SendFrame(data protocol.BlendShapesData) error {
	if data.Backend == "" {
		data.Backend = c.backend
	}
	msg, err := protocol.NewBlendShapesMessage(data)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// WaitStart blocks until the hub sends a start command.
func (c *Client) WaitStart(ctx context.Context) (*protocol.StartCommand, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-c.control:
			if !ok {
				return nil, c.closedErr()
			}
			if msg.Type != protocol.TypeStart {
				continue
			}
			return msg.GetStartCommand()
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.wmu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.wmu.Unlock()
	return c.conn.Close()
}

func (c *Client) closedErr() error {
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return ErrClosed
}

// ReplayOptions controls Replay.
type ReplayOptions struct {
	// Interval paces frames without usable timestamps.
	Interval time.Duration
	// Loop restarts the recording when it ends.
	Loop bool
}

// Replay serves sessions from a recording until ctx ends or the
// connection drops. Each start command is acknowledged and answered with
// the recorded frames, re-stamped with the current time.
func (c *Client) Replay(ctx context.Context, rec []protocol.BlendShapesData, opts ReplayOptions) error {
	if len(rec) == 0 {
		return fmt.Errorf("capture: empty recording")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultReplayInterval
	}

	for {
		cmd, err := c.WaitStart(ctx)
		if err != nil {
			return err
		}
		c.log.Info("replay session started", "capture_session", cmd.SessionID, "facing", cmd.CameraFacing, "frames", len(rec))
		if err := c.SendReady(); err != nil {
			return err
		}
		if err := c.stream(ctx, rec, opts); err != nil {
			return err
		}
		c.log.Info("replay session stopped", "capture_session", cmd.SessionID)
	}
}

// stream sends rec until a stop command arrives.
func (c *Client) stream(ctx context.Context, rec []protocol.BlendShapesData, opts ReplayOptions) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for i := 0; ; i++ {
		if i == len(rec) {
			if !opts.Loop {
				return c.waitStop(ctx)
			}
			i = 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.control:
			if !ok {
				return c.closedErr()
			}
			if msg.Type == protocol.TypeStop {
				return nil
			}
		case <-timer.C:
			frame := rec[i]
			frame.Timestamp = time.Now().UnixMilli()
			if err := c.SendFrame(frame); err != nil {
				return err
			}
			timer.Reset(frameDelay(rec, i, opts.Interval))
			continue
		}
		// A control message other than stop: retry this frame.
		i--
	}
}

func (c *Client) waitStop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.control:
			if !ok {
				return c.closedErr()
			}
			if msg.Type == protocol.TypeStop {
				return nil
			}
		}
	}
}

// frameDelay is the recorded gap between frame i and the next one.
func frameDelay(rec []protocol.BlendShapesData, i int, fallback time.Duration) time.Duration {
	next := i + 1
	if next >= len(rec) {
		next = 0
	}
	gap := time.Duration(rec[next].Timestamp-rec[i].Timestamp) * time.Millisecond
	if gap <= 0 || gap > time.Second {
		return fallback
	}
	return gap
}

// ReadRecording parses a JSON-lines recording, one BlendShapesData per
// line. Blank lines are skipped.
func ReadRecording(r io.Reader) ([]protocol.BlendShapesData, error) {
	var rec []protocol.BlendShapesData
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var frame protocol.BlendShapesData
		if err := json.Unmarshal(b, &frame); err != nil {
			return nil, fmt.Errorf("capture: recording line %d: %w", line, err)
		}
		rec = append(rec, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("capture: read recording: %w", err)
	}
	return rec, nil
}
