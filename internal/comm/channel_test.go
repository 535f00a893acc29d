package comm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	t.Run("порядок отправки сохраняется", func(t *testing.T) {
		ch := NewChannel()
		ch.Broadcast(SensorID, Payload{"type": "observation"})
		ch.Broadcast(0, Payload{"n": 1})
		ch.Broadcast(1, Payload{"n": 2})
		ch.Broadcast(0, Payload{"n": 3})

		got := ch.Receive(2)
		require.Len(t, got, 4)
		assert.Equal(t, SensorID, got[0].SenderID)
		assert.Equal(t, 1, got[1].Payload["n"])
		assert.Equal(t, 2, got[2].Payload["n"])
		assert.Equal(t, 3, got[3].Payload["n"])
	})

	t.Run("свои сообщения не доставляются", func(t *testing.T) {
		ch := NewChannel()
		senders := []int{0, 1, 0, SensorID, 2, 0, 1}
		for i, s := range senders {
			ch.Broadcast(s, Payload{"i": i})
		}

		for _, id := range []int{SensorID, 0, 1, 2, 3} {
			for _, msg := range ch.Receive(id) {
				assert.NotEqual(t, id, msg.SenderID, "агент %d получил своё сообщение", id)
			}
		}
		assert.Len(t, ch.Receive(0), 4)
		assert.Len(t, ch.Receive(3), len(senders))
	})

	t.Run("дубликаты не удаляются", func(t *testing.T) {
		ch := NewChannel()
		p := Payload{"same": true}
		ch.Broadcast(5, p)
		ch.Broadcast(5, p)
		assert.Len(t, ch.Receive(0), 2)
		assert.Equal(t, 2, ch.Len())
	})

	t.Run("Clear идемпотентен", func(t *testing.T) {
		ch := NewChannel()
		ch.Clear()
		ch.Broadcast(1, Payload{})
		ch.Clear()
		ch.Clear()
		assert.Equal(t, 0, ch.Len())
		assert.Empty(t, ch.Receive(0))
	})

	t.Run("Receive не отдаёт внутренний срез", func(t *testing.T) {
		ch := NewChannel()
		ch.Broadcast(1, Payload{"v": 1})
		got := ch.Receive(0)
		got[0].SenderID = 42
		assert.Equal(t, 1, ch.Receive(0)[0].SenderID)
	})

	t.Run("получатели не видят чужих изменений payload", func(t *testing.T) {
		ch := NewChannel()
		ch.Broadcast(1, Payload{"target": "a"})

		first := ch.Receive(0)
		first[0].Payload["target"] = "b"
		first[0].Payload["extra"] = true

		second := ch.Receive(2)
		assert.Equal(t, "a", second[0].Payload["target"])
		assert.NotContains(t, second[0].Payload, "extra")
	})
}
