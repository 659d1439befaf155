package stream

import (
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pokered-rl/trainctl/internal/gym"
)

// DefaultEndpoint is the public broadcast relay the map viewer watches.
const DefaultEndpoint = "wss://transdimensional.xyz/broadcast"

// DefaultUploadInterval is the number of steps buffered between frames.
const DefaultUploadInterval = 300

// Metadata identifies an agent on the shared map view.
type Metadata struct {
	User  string `json:"user"`
	EnvID int    `json:"env_id"`
	Color string `json:"color"`
	Extra string `json:"extra"`
}

// DefaultMetadata returns the broadcast identity for one env rank.
func DefaultMetadata(rank int) Metadata {
	return Metadata{
		User:  "v2-default",
		EnvID: rank,
		Color: "#447799",
		Extra: "",
	}
}

type frame struct {
	Metadata Metadata `json:"metadata"`
	Coords   [][3]int `json:"coords"`
}

// Wrapper decorates an environment with position broadcasting. Each step
// it buffers the agent's coordinates from the step info (the "coords"
// key, an [x y map] triple) and every UploadInterval steps ships the
// buffer to the relay as one JSON frame.
//
// Streaming is strictly best-effort: connect lazily, drop frames on
// failure, reconnect on the next flush. A dead relay never affects
// stepping.
type Wrapper struct {
	inner    gym.Environment
	meta     Metadata
	endpoint string
	interval int
	log      logrus.FieldLogger

	conn   *websocket.Conn
	coords [][3]int
	steps  int
}

// Wrap decorates env with broadcasting under the given identity.
func Wrap(env gym.Environment, meta Metadata, log logrus.FieldLogger) *Wrapper {
	return &Wrapper{
		inner:    env,
		meta:     meta,
		endpoint: DefaultEndpoint,
		interval: DefaultUploadInterval,
		log:      log,
	}
}

// WithEndpoint points the wrapper at a different relay.
func (w *Wrapper) WithEndpoint(endpoint string) *Wrapper {
	w.endpoint = endpoint
	return w
}

func (w *Wrapper) Reset(seed int64) (gym.Observation, gym.Info, error) {
	w.coords = w.coords[:0]
	w.steps = 0
	return w.inner.Reset(seed)
}

func (w *Wrapper) Step(action int) (gym.StepResult, error) {
	res, err := w.inner.Step(action)
	if err != nil {
		return res, err
	}

	if coord, ok := coordFromInfo(res.Info); ok {
		w.coords = append(w.coords, coord)
	}
	w.steps++
	if w.steps%w.interval == 0 {
		w.flush()
	}
	return res, nil
}

func (w *Wrapper) Close() error {
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	return w.inner.Close()
}

func (w *Wrapper) NumActions() int {
	return w.inner.NumActions()
}

func (w *Wrapper) flush() {
	if len(w.coords) == 0 {
		return
	}

	if w.conn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(w.endpoint, nil)
		if err != nil {
			w.log.WithError(err).Debug("stream relay unreachable")
			w.coords = w.coords[:0]
			return
		}
		w.conn = conn
	}

	err := w.conn.WriteJSON(frame{
		Metadata: w.meta,
		Coords:   w.coords,
	})
	if err != nil {
		w.log.WithError(err).Debug("stream frame dropped")
		w.conn.Close()
		w.conn = nil
	}
	w.coords = w.coords[:0]
}

// coordFromInfo extracts an [x y map] triple from the step info.
func coordFromInfo(info gym.Info) ([3]int, bool) {
	raw, ok := info["coords"]
	if !ok {
		return [3]int{}, false
	}

	var coord [3]int
	switch v := raw.(type) {
	case [3]int:
		return v, true
	case []int:
		if len(v) != 3 {
			return coord, false
		}
		copy(coord[:], v)
		return coord, true
	case []any:
		if len(v) != 3 {
			return coord, false
		}
		for i, item := range v {
			switch n := item.(type) {
			case int:
				coord[i] = n
			case float64:
				coord[i] = int(n)
			default:
				return [3]int{}, false
			}
		}
		return coord, true
	default:
		return [3]int{}, false
	}
}
