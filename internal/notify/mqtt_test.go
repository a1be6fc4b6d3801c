package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluckburg/coopdoor/internal/hw/stepper"
	"github.com/cluckburg/coopdoor/internal/logic/door"
)

// doneToken is a completed paho.Token carrying an optional error.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	connectErr   error
	published    []published
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token { return doneToken{err: c.connectErr} }

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return doneToken{}
}

func newTestPublisher(fc *fakeClient) *Publisher {
	return &Publisher{
		client:  fc,
		topic:   "coop/door",
		enabled: true,
		now:     func() time.Time { return time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC) },
	}
}

func TestNew_DisabledWithoutHost(t *testing.T) {
	p, err := New(Config{Topic: "coop/door"})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Connect())
	p.ManeuverDone(door.Open, door.Command{}, time.Second)
	p.Disconnect()
}

func TestNew_EnabledWithHost(t *testing.T) {
	p, err := New(Config{Host: "localhost", Topic: "coop/door", ClientID: "test"})
	require.NoError(t, err)
	assert.True(t, p.Enabled())
}

func TestNew_BadCACert(t *testing.T) {
	_, err := New(Config{Host: "localhost", CACert: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}

func TestManeuverDone_PublishesRetainedState(t *testing.T) {
	fc := &fakeClient{}
	p := newTestPublisher(fc)

	p.ManeuverDone(door.Open, door.Command{StepIntervalMs: 2, Pattern: stepper.WeakFast, Revolutions: 2}, 10500*time.Millisecond)

	require.Len(t, fc.published, 1)
	msg := fc.published[0]
	assert.Equal(t, "coop/door", msg.topic)
	assert.True(t, msg.retained)
	assert.Equal(t, byte(1), msg.qos)

	var m Message
	require.NoError(t, json.Unmarshal(msg.payload, &m))
	assert.Equal(t, "open", m.State)
	assert.Equal(t, 2, m.Revolutions)
	assert.Equal(t, "weak_fast", m.Pattern)
	assert.Equal(t, int64(10500), m.DurationMs)
}

func TestConnect_Error(t *testing.T) {
	fc := &fakeClient{connectErr: errors.New("refused")}
	p := newTestPublisher(fc)
	assert.ErrorContains(t, p.Connect(), "refused")
}

func TestDisconnect(t *testing.T) {
	fc := &fakeClient{}
	p := newTestPublisher(fc)
	p.Disconnect()
	assert.True(t, fc.disconnected)
}
