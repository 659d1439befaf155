package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokered-rl/trainctl/internal/gym"
)

// coordEnv emits an [x y map] triple in the step info; withCoords false
// leaves the info empty.
type coordEnv struct {
	withCoords bool
	step       int
	closed     bool
}

func (e *coordEnv) Reset(int64) (gym.Observation, gym.Info, error) {
	return nil, gym.Info{}, nil
}

func (e *coordEnv) Step(int) (gym.StepResult, error) {
	e.step++
	info := gym.Info{}
	if e.withCoords {
		info["coords"] = []int{e.step, e.step + 1, 7}
	}
	return gym.StepResult{Info: info}, nil
}

func (e *coordEnv) Close() error {
	e.closed = true
	return nil
}

func (e *coordEnv) NumActions() int { return 7 }

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// relay captures every frame posted to an in-process websocket endpoint.
type relay struct {
	server *httptest.Server
	frames chan frame
}

func newRelay(t *testing.T) *relay {
	t.Helper()
	r := &relay{frames: make(chan frame, 16)}
	upgrader := websocket.Upgrader{}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if json.Unmarshal(data, &f) == nil {
				r.frames <- f
			}
		}
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *relay) url() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

func (r *relay) next(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-r.frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return frame{}
	}
}

func TestWrapperBuffersAndFlushes(t *testing.T) {
	r := newRelay(t)

	env := &coordEnv{withCoords: true}
	w := Wrap(env, DefaultMetadata(2), quietLogger()).WithEndpoint(r.url())
	w.interval = 3

	_, _, err := w.Reset(1)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := w.Step(0)
		require.NoError(t, err)
	}

	first := r.next(t)
	assert.Equal(t, 2, first.Metadata.EnvID)
	assert.Equal(t, "v2-default", first.Metadata.User)
	require.Len(t, first.Coords, 3)
	assert.Equal(t, [3]int{1, 2, 7}, first.Coords[0])

	second := r.next(t)
	require.Len(t, second.Coords, 3)
	assert.Equal(t, [3]int{4, 5, 7}, second.Coords[0])

	require.NoError(t, w.Close())
}

func TestWrapperResetClearsBuffer(t *testing.T) {
	r := newRelay(t)

	w := Wrap(&coordEnv{withCoords: true}, DefaultMetadata(0), quietLogger()).WithEndpoint(r.url())
	w.interval = 4

	_, _, err := w.Reset(1)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := w.Step(0)
		require.NoError(t, err)
	}
	_, _, err = w.Reset(1)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := w.Step(0)
		require.NoError(t, err)
	}

	// only the four post-reset coords arrive
	f := r.next(t)
	require.Len(t, f.Coords, 4)
	require.NoError(t, w.Close())
}

func TestWrapperSurvivesDeadRelay(t *testing.T) {
	w := Wrap(&coordEnv{withCoords: true}, DefaultMetadata(0), quietLogger()).
		WithEndpoint("ws://127.0.0.1:1/broadcast")
	w.interval = 2

	_, _, err := w.Reset(1)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := w.Step(0)
		require.NoError(t, err, "a dead relay must not affect stepping")
	}
	assert.Empty(t, w.coords, "dropped frames do not accumulate")
	require.NoError(t, w.Close())
}

func TestWrapperSkipsStepsWithoutCoords(t *testing.T) {
	env := &coordEnv{}
	w := Wrap(env, DefaultMetadata(0), quietLogger()).
		WithEndpoint("ws://127.0.0.1:1/broadcast")
	w.interval = 2

	_, _, err := w.Reset(1)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := w.Step(0)
		require.NoError(t, err)
	}
	assert.Empty(t, w.coords)
	require.NoError(t, w.Close())
}

func TestCoordFromInfo(t *testing.T) {
	tests := []struct {
		name string
		info gym.Info
		want [3]int
		ok   bool
	}{
		{"array", gym.Info{"coords": [3]int{1, 2, 3}}, [3]int{1, 2, 3}, true},
		{"int slice", gym.Info{"coords": []int{4, 5, 6}}, [3]int{4, 5, 6}, true},
		{"json numbers", gym.Info{"coords": []any{float64(7), float64(8), float64(9)}}, [3]int{7, 8, 9}, true},
		{"mixed any", gym.Info{"coords": []any{1, 2, float64(3)}}, [3]int{1, 2, 3}, true},
		{"wrong length", gym.Info{"coords": []int{1, 2}}, [3]int{}, false},
		{"wrong type", gym.Info{"coords": "1,2,3"}, [3]int{}, false},
		{"missing", gym.Info{}, [3]int{}, false},
		{"non-numeric element", gym.Info{"coords": []any{1, "2", 3}}, [3]int{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coordFromInfo(tt.info)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
