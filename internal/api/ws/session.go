package ws

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lapsight/lapsight/internal/replay"
)

// writeTimeout bounds a single state push so a stalled client cannot pin
// the session forever.
const writeTimeout = 10 * time.Second

// Command is a control message from a rendering client.
type Command struct {
	Type       string  `json:"type"` // play | pause | toggle | seek | speed | reset
	Index      int     `json:"index,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// stateMessage is pushed to the client after every engine mutation. The
// sample values are read from the trace at the current index on the way
// out; the engine never stores them.
type stateMessage struct {
	Type       string  `json:"type"`
	Index      int     `json:"index"`
	Playing    bool    `json:"playing"`
	Multiplier float64 `json:"multiplier"`
	SpeedMPH   float64 `json:"speed_mph"`
	DistanceM  float64 `json:"distance_m"`
	ElapsedS   float64 `json:"elapsed_s"`
}

type session struct {
	id      string
	trace   *replay.Trace
	engine  *replay.Engine
	driver  *replay.Driver
	updates chan replay.Snapshot
}

func newSession(trace *replay.Trace) *session {
	s := &session{
		id:      uuid.NewString(),
		trace:   trace,
		updates: make(chan replay.Snapshot, 64),
	}
	s.engine = replay.New(trace)
	s.driver = replay.NewDriver(s.engine, s.publish)
	return s
}

// publish runs on the driver goroutine. A client that cannot keep up loses
// intermediate frames rather than stalling the frame loop.
func (s *session) publish(snapshot replay.Snapshot) {
	select {
	case s.updates <- snapshot:
	default:
	}
}

// run drives the session until the client disconnects or ctx ends. The
// driver owns the engine; the read and write pumps never touch it directly.
func (s *session) run(ctx context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	go s.readCommands(ctx, cancel, conn)
	go s.writeStates(ctx, cancel, conn)
	_ = s.driver.Run(ctx)
}

func (s *session) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		op, err := commandOp(cmd)
		if err != nil {
			log.Printf("replay session %s: %v", s.id, err)
			continue
		}
		if err := s.driver.Do(ctx, op); err != nil {
			return
		}
	}
}

func (s *session) writeStates(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-s.updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(s.stateMessage(snapshot)); err != nil {
				return
			}
		}
	}
}

func (s *session) stateMessage(snapshot replay.Snapshot) stateMessage {
	msg := stateMessage{
		Type:       "state",
		Index:      snapshot.Index,
		Playing:    snapshot.Playing,
		Multiplier: snapshot.Multiplier,
	}
	if i := snapshot.Index; i < s.trace.Len() {
		msg.SpeedMPH = s.trace.SpeedMPH[i]
		msg.DistanceM = s.trace.DistanceM[i]
		if i < len(s.trace.ElapsedS) {
			msg.ElapsedS = s.trace.ElapsedS[i]
		}
	}
	return msg
}

func commandOp(cmd Command) (func(*replay.Engine), error) {
	switch cmd.Type {
	case "play":
		return (*replay.Engine).Play, nil
	case "pause":
		return (*replay.Engine).Pause, nil
	case "toggle":
		return (*replay.Engine).TogglePlay, nil
	case "seek":
		return func(e *replay.Engine) { e.Seek(cmd.Index) }, nil
	case "speed":
		return func(e *replay.Engine) { e.SetSpeed(cmd.Multiplier) }, nil
	case "reset":
		return (*replay.Engine).Reset, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd.Type)
}
